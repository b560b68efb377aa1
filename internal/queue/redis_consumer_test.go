package queue

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestPagePayloadUnmarshalBase64Image(t *testing.T) {
	raw := `{"pageNumber":3,"text":"FLOOR PLAN","image":"aGVsbG8="}`

	var page PagePayload
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if page.PageNumber != 3 || page.Text != "FLOOR PLAN" {
		t.Errorf("page = %+v", page)
	}
	if !bytes.Equal(page.Image, []byte("hello")) {
		t.Errorf("image = %q, want %q", page.Image, "hello")
	}
}

func TestPagePayloadUnmarshalNodeBufferImage(t *testing.T) {
	raw := `{"pageNumber":1,"text":"","image":{"type":"Buffer","data":[104,105]}}`

	var page PagePayload
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !bytes.Equal(page.Image, []byte("hi")) {
		t.Errorf("image = %v, want %q", page.Image, "hi")
	}
}

func TestPagePayloadUnmarshalNoImage(t *testing.T) {
	raw := `{"pageNumber":2,"text":"NOTES"}`

	var page PagePayload
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if page.Image != nil {
		t.Errorf("image = %v, want nil", page.Image)
	}
}

func TestPagePayloadUnmarshalInvalidImage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad base64", `{"pageNumber":1,"text":"","image":"not base64!!!"}`},
		{"wrong buffer type", `{"pageNumber":1,"text":"","image":{"type":"Blob","data":[1]}}`},
		{"missing data array", `{"pageNumber":1,"text":"","image":{"type":"Buffer"}}`},
		{"numeric image", `{"pageNumber":1,"text":"","image":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page PagePayload
			if err := json.Unmarshal([]byte(tt.raw), &page); err == nil {
				t.Errorf("unmarshal of %s succeeded, want error", tt.name)
			}
		})
	}
}

func TestRedisJobDataRoundTrip(t *testing.T) {
	raw := `{
		"id": "job-1",
		"type": "parse-plan",
		"payload": {
			"planParseId": "pp-123",
			"userId": "user-9",
			"filename": "residence.pdf",
			"totalPages": 2,
			"pages": [
				{"pageNumber": 1, "text": "COVER"},
				{"pageNumber": 2, "text": "FIRST FLOOR PLAN"}
			]
		},
		"attempts": 0,
		"maxRetries": 3
	}`

	var job RedisJobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if job.Payload.PlanParseID != "pp-123" || job.Payload.TotalPages != 2 {
		t.Errorf("payload = %+v", job.Payload)
	}
	if len(job.Payload.Pages) != 2 || job.Payload.Pages[1].Text != "FIRST FLOOR PLAN" {
		t.Errorf("pages = %+v", job.Payload.Pages)
	}
	if job.MaxRetries != 3 {
		t.Errorf("maxRetries = %d", job.MaxRetries)
	}
}
