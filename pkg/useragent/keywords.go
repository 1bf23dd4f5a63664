package useragent

import "strings"

type keywordSet []string

func newKeywordSet(keywords ...string) keywordSet {
	return keywordSet(keywords)
}

// match returns the first keyword contained in s, or "".
func (k keywordSet) match(s string) string {
	for _, keyword := range k {
		if strings.Contains(s, keyword) {
			return keyword
		}
	}
	return ""
}

func (k keywordSet) contains(s string) bool {
	return k.match(s) != ""
}
