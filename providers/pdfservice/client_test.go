package pdfservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paper-intake/config"

	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(&config.Config{PDFServiceURL: url, RequestTimeout: 30}, zap.NewNop())
}

func TestAnalyzeDecodesBlocksAndKeepsRawBody(t *testing.T) {
	const body = `[{"page_number": 1, "text": "A Title", "type": "title"},
		{"page_number": 2, "text": "some text", "type": "plain text"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	blocks, raw, serr := newTestClient(srv.URL).Analyze(context.Background(), "scan.pdf", []byte("%PDF-fake"))
	if serr != nil {
		t.Fatalf("Analyze: %v", serr)
	}
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}
	if blocks[0].Text != "A Title" || blocks[1].Type != "plain text" {
		t.Errorf("blocks = %+v", blocks)
	}
	if string(raw) != body {
		t.Errorf("raw = %q, want untouched response body", raw)
	}
}

func TestAnalyzeErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    ErrorKind
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: ErrStatus,
		},
		{
			name: "body is not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>gateway error</html>"))
			},
			want: ErrBadJSON,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, _, serr := newTestClient(srv.URL).Analyze(context.Background(), "scan.pdf", []byte("x"))
			if serr == nil || serr.Kind != tt.want {
				t.Fatalf("serr = %v, want kind %s", serr, tt.want)
			}
		})
	}
}

func TestAnalyzeClassifiesTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, serr := newTestClient(srv.URL).Analyze(ctx, "scan.pdf", []byte("x"))
	if serr == nil || serr.Kind != ErrTimeout {
		t.Fatalf("serr = %v, want kind %s", serr, ErrTimeout)
	}
}

func TestAnalyzeClassifiesConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, _, serr := newTestClient(srv.URL).Analyze(context.Background(), "scan.pdf", []byte("x"))
	if serr == nil || serr.Kind != ErrConnection {
		t.Fatalf("serr = %v, want kind %s", serr, ErrConnection)
	}
}
