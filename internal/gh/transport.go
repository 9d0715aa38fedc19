package gh

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// envelopeTransport inspects every GraphQL response before the graphql
// client decodes it, so failures surface as TransportError or ProtocolError
// with the full status, body and error list intact.
type envelopeTransport struct {
	base http.RoundTripper
}

func (t *envelopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, &TransportError{StatusCode: res.StatusCode, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{StatusCode: res.StatusCode, Body: string(body)}
	}

	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	// A body that is not JSON is left for the graphql client to report.
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &ProtocolError{Messages: messages}
	}

	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	return res, nil
}
