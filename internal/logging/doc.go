// Package logging provides structured logging for the plk client.
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug) for wire-level request dumps
//   - Automatic context field injection (trace_id, request.id, upload.id)
//   - Redaction of bearer tokens, passwords and other credentials
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "3f1c...")
//	ctx = logging.WithUploadID(ctx, uploadID)
//	logger.Info(ctx, "analysis fetched", zap.String("status", "pending"))
//
// CLI output goes to stderr so stdout stays reserved for command results.
package logging
