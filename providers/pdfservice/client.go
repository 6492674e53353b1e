package pdfservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"paper-intake/config"
	"paper-intake/models"

	"go.uber.org/zap"
)

// ErrorKind kategorisiert Fehler des PDF-Dienstes für den Aufrufer.
type ErrorKind string

const (
	ErrTimeout    ErrorKind = "timeout"
	ErrConnection ErrorKind = "connection"
	ErrStatus     ErrorKind = "http_status"
	ErrBadJSON    ErrorKind = "invalid_json"
	ErrUnexpected ErrorKind = "unexpected"
)

// ServiceError ist ein kategorisierter Fehler des Layout-Analyse-Dienstes.
type ServiceError struct {
	Kind    ErrorKind
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("pdf service %s: %s", e.Kind, e.Message)
}

// Client kapselt die Kommunikation mit dem externen Layout-Analyse-Dienst.
type Client struct {
	Config *config.Config
	Logger *zap.Logger

	httpClient *http.Client
}

// NewClient erstellt einen neuen PDF-Dienst-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: logger,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

// Analyze sendet das PDF als multipart-Upload an den Dienst und gibt die
// Layout-Blöcke sowie den rohen Antwortkörper zurück. Fehler werden in die
// fünf Kategorien von ServiceError eingeordnet.
func (c *Client) Analyze(ctx context.Context, fileName string, data []byte) ([]models.TextBlock, []byte, *ServiceError) {
	log := c.Logger.With(zap.String("file", fileName))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, nil, &ServiceError{Kind: ErrUnexpected, Message: err.Error()}
	}
	if _, err := part.Write(data); err != nil {
		return nil, nil, &ServiceError{Kind: ErrUnexpected, Message: err.Error()}
	}
	if err := writer.Close(); err != nil {
		return nil, nil, &ServiceError{Kind: ErrUnexpected, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.PDFServiceURL, &body)
	if err != nil {
		return nil, nil, &ServiceError{Kind: ErrUnexpected, Message: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("PDF-Dienst antwortete mit Fehlerstatus.", zap.Int("status", resp.StatusCode))
		return nil, nil, &ServiceError{
			Kind:    ErrStatus,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var raw bytes.Buffer
	dec := json.NewDecoder(io.TeeReader(resp.Body, &raw))
	dec.UseNumber()
	var blocks []models.TextBlock
	if err := dec.Decode(&blocks); err != nil {
		return nil, nil, &ServiceError{Kind: ErrBadJSON, Message: err.Error()}
	}

	log.Debug("Layout-Analyse abgeschlossen.", zap.Int("blocks", len(blocks)))
	return blocks, raw.Bytes(), nil
}

func classifyTransportError(err error) *ServiceError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ServiceError{Kind: ErrTimeout, Message: err.Error()}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ServiceError{Kind: ErrConnection, Message: err.Error()}
	}
	return &ServiceError{Kind: ErrUnexpected, Message: err.Error()}
}
