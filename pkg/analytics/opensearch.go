package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
)

// OpenSearchSink indexes events into <prefix>-evaluations and
// <prefix>-registrations.
type OpenSearchSink struct {
	client             *opensearch.Client
	evaluationIndex    string
	registrationsIndex string
}

func NewOpenSearchSink(client *opensearch.Client, indexPrefix string) *OpenSearchSink {
	if indexPrefix == "" {
		indexPrefix = "flaggate"
	}
	return &OpenSearchSink{
		client:             client,
		evaluationIndex:    indexPrefix + "-evaluations",
		registrationsIndex: indexPrefix + "-registrations",
	}
}

func (s *OpenSearchSink) RecordEvaluation(ctx context.Context, event EvaluationEvent) error {
	return s.index(ctx, s.evaluationIndex, event)
}

func (s *OpenSearchSink) RecordRegistration(ctx context.Context, event RegistrationEvent) error {
	return s.index(ctx, s.registrationsIndex, event)
}

func (s *OpenSearchSink) index(ctx context.Context, index string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrEncodeEvent, err)
	}

	res, err := s.client.Index(index, bytes.NewReader(body), s.client.Index.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrSinkUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Join(ErrSinkUnavailable, fmt.Errorf("index %s: %s", index, res.Status()))
	}
	return nil
}
