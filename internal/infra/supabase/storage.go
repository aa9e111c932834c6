package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// ============================================================
// ObjectStorage implementation — Supabase Storage uploads
// ============================================================

// Upload stores one filing document and returns its public URL. The
// path carries the submission layout (date / applicant / category),
// so uploads use x-upsert to stay idempotent across retries.
func (c *Client) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.path", path),
		attribute.Int("storage.size_bytes", len(data)),
	)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err := c.execute(ctx, func() error {
		url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}

		c.setAuthHeaders(req)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("supabase: storage upload failed",
				zap.String("path", path),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := readBody(resp)
			c.logger.Warn("supabase: storage non-2xx",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
			return fmt.Errorf("supabase storage returned %d: %s", resp.StatusCode, string(body))
		}

		c.logger.Debug("supabase: upload OK",
			zap.String("path", path),
			zap.Int("size", len(data)),
		)
		return nil
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "supabase/storage", Err: err}
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, path), nil
}
