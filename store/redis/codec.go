package redis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sodmaster111/sodmaster/job"
)

// document is the flat JSON shape stored under each job key.
type document struct {
	ID        string       `json:"id"`
	Payload   job.Document `json:"payload"`
	Status    job.Status   `json:"status"`
	Result    job.Document `json:"result"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func encodeRecord(r *job.Record) ([]byte, error) {
	data, err := json.Marshal(document{
		ID:        r.ID,
		Payload:   r.Payload,
		Status:    r.Status,
		Result:    r.Result,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("sodmaster/redis: encode job %s: %w", r.ID, err)
	}
	return data, nil
}

// decodeRecord keeps numbers as json.Number so integers survive the trip
// without turning into float64.
func decodeRecord(data []byte) (*job.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var d document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("sodmaster/redis: decode job: %w", err)
	}
	if d.Payload == nil {
		d.Payload = job.Document{}
	}
	return &job.Record{
		ID:        d.ID,
		Payload:   d.Payload,
		Status:    d.Status,
		Result:    d.Result,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
