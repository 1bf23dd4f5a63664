package audit

func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithActor overrides the actor extracted from context.
func WithActor(actor string) EventOption {
	return func(e *Event) {
		if actor != "" {
			e.Actor = actor
		}
	}
}

func WithSeverity(severity Severity) EventOption {
	return func(e *Event) {
		e.Severity = severity
	}
}

func WithDetail(key string, value any) EventOption {
	return func(e *Event) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

func WithIP(ip string) EventOption {
	return func(e *Event) {
		e.IP = ip
	}
}

func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}
