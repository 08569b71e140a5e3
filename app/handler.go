package app

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/auth"
	"github.com/SpacksD/Printer-connect/pkg/codec"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/SpacksD/Printer-connect/pkg/queue"
	"github.com/SpacksD/Printer-connect/pkg/validator"
	"github.com/google/uuid"
	"lol.mleku.dev/log"
)

// HandleConn drives one connection through the six-step request gauntlet of
// spec §4.10: read one frame, extract and validate a bearer token, charge
// the rate limiter, dispatch on message_type, write exactly one response
// frame, then close. There is no request pipelining: one frame in, one
// frame out, per connection.
func (s *Server) HandleConn(conn net.Conn) {
	defer conn.Close()
	s.Metrics.ConnectionsOpen.Inc()
	defer s.Metrics.ConnectionsOpen.Dec()

	remote := conn.RemoteAddr().String()
	deadline := time.Duration(s.Config.ReadDeadlineSeconds) * time.Second
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		log.W.F("handler: %s: failed to set read deadline: %v", remote, err)
		return
	}

	// base64 inflates payload size by roughly 4/3; give the frame ceiling
	// enough headroom over the configured file-size bound to admit it, plus
	// a flat allowance for the surrounding JSON envelope and metadata.
	maxFrameBytes := uint32(s.Config.MaxFileSizeMB)*1024*1024*4/3 + 1024*1024
	env, err := codec.ReadFrame(conn, maxFrameBytes)
	if err != nil {
		log.T.F("handler: %s: frame read failed: %v", remote, err)
		_ = codec.WriteFrame(conn, codec.ErrorResponse("FRAMING_ERROR", "malformed request frame"))
		return
	}

	resp := s.dispatch(remote, env)
	if err = codec.WriteFrame(conn, resp); err != nil {
		log.W.F("handler: %s: failed to write response: %v", remote, err)
	}
}

// dispatch runs steps 2 through 5 of the gauntlet and always returns a
// response envelope; it never panics or returns nil.
func (s *Server) dispatch(remote string, env *codec.Envelope) *codec.Envelope {
	claims, authErr := s.authenticate(env)
	if authErr != nil {
		return errorEnvelope(authErr)
	}

	if retryAfter, limitErr := s.Limiter.Check(claims.ClientID, 1); limitErr != nil {
		s.recordRateLimited()
		log.T.F("handler: %s: rate limited, retry after %s", remote, retryAfter)
		return errorEnvelope(limitErr)
	}

	switch env.MessageType {
	case "print_job":
		return s.handlePrintJob(remote, claims, env)
	case "ping":
		return s.handlePing(claims)
	case "status":
		return s.handleStatus()
	default:
		return errorEnvelope(apperr.New(apperr.Input, "UNSUPPORTED_MESSAGE_TYPE", "unsupported message_type"))
	}
}

// recordRateLimited bumps both the live Prometheus counter and the day's
// durable rate_limited_count, per spec §3's DailyStats data model.
func (s *Server) recordRateLimited() {
	s.Metrics.RateLimited.Inc()
	s.bumpDailyStats(model.DailyStats{RateLimitedCount: 1})
}

// recordValidationFailure bumps both the live Prometheus counter and the
// day's durable validation_rejected_count, per spec §3's DailyStats data
// model.
func (s *Server) recordValidationFailure(field string) {
	s.Metrics.ValidationFails.WithLabelValues(field).Inc()
	s.bumpDailyStats(model.DailyStats{ValidationRejectedCount: 1})
}

// bumpDailyStats upserts delta into today's durable stats row, logging
// rather than failing the request on a store error: the counter is
// best-effort bookkeeping, not part of the admission decision.
func (s *Server) bumpDailyStats(delta model.DailyStats) {
	if _, err := s.Store.UpsertDailyStats(model.DateKey(time.Now()), delta); err != nil {
		log.W.F("handler: failed to record daily stats: %v", err)
	}
}

// authenticate extracts and validates the bearer token, per spec §4.5.
func (s *Server) authenticate(env *codec.Envelope) (auth.Claims, error) {
	header := env.Headers.Authorization
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		s.Metrics.AuthFailures.WithLabelValues("missing").Inc()
		return auth.Claims{}, apperr.New(apperr.Auth, "UNAUTHORIZED", "missing bearer token")
	}
	token := strings.TrimPrefix(header, prefix)
	claims, err := s.Auth.Validate(token)
	if err != nil {
		reason := "invalid"
		if ae, ok := apperr.As(err); ok && ae.Code == "TOKEN_EXPIRED" {
			reason = "expired"
		}
		s.Metrics.AuthFailures.WithLabelValues(reason).Inc()
		return auth.Claims{}, err
	}
	return claims, nil
}

// handlePrintJob implements the print_job admission path of spec §4.10:
// validate every field, materialize the payload under the temp root, persist
// a pending job, and push it onto the priority queue. Any failure after the
// temp file is written but before the job row is persisted deletes the file.
func (s *Server) handlePrintJob(remote string, claims auth.Claims, env *codec.Envelope) *codec.Envelope {
	var data codec.PrintJobData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		s.recordValidationFailure("data")
		return errorEnvelope(apperr.New(apperr.Input, "VALIDATION_ERROR", "malformed print_job data").WithField("data"))
	}

	if err := s.validatePrintJob(claims, &data); err != nil {
		field := ""
		if ae, ok := apperr.As(err); ok {
			field = ae.Field
		}
		s.recordValidationFailure(field)
		return errorEnvelope(err)
	}

	documentName, docErr := validator.DocumentName(data.Parameters.DocumentName)
	if docErr != nil {
		s.recordValidationFailure("document_name")
		return errorEnvelope(docErr)
	}

	raw, decErr := base64.StdEncoding.DecodeString(data.FileContent)
	if decErr != nil {
		s.recordValidationFailure("file_content")
		return errorEnvelope(apperr.New(apperr.Input, "VALIDATION_ERROR", "file_content is not valid base64").WithField("file_content"))
	}
	maxBytes := int64(s.Config.MaxFileSizeMB) * 1024 * 1024
	if err := validator.FileSize(int64(len(raw)), maxBytes); err != nil {
		s.recordValidationFailure("file_size_bytes")
		return errorEnvelope(err)
	}

	jobID := uuid.NewString()
	ext := strings.ToLower(strings.TrimPrefix(data.FileFormat, "."))
	tempPath, pathErr := validator.TempPath(s.Config.TempFolder, jobID+"."+ext)
	if pathErr != nil {
		return errorEnvelope(pathErr)
	}
	if err := os.MkdirAll(s.Config.TempFolder, 0o755); err != nil {
		return errorEnvelope(apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to prepare spool directory", err))
	}
	if err := os.WriteFile(tempPath, raw, 0o640); err != nil {
		return errorEnvelope(apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to materialize payload", err))
	}

	if _, err := s.Store.UpsertClient(data.ClientID, remote, ""); err != nil {
		_ = os.Remove(tempPath)
		return errorEnvelope(err)
	}

	now := time.Now()
	job := &model.Job{
		JobID:         jobID,
		ClientID:      data.ClientID,
		UserName:      data.User,
		DocumentName:  documentName,
		FileFormat:    ext,
		FileSizeBytes: int64(len(raw)),
		PageSize:      data.Parameters.PageSize,
		Orientation:   data.Parameters.Orientation,
		Copies:        data.Parameters.Copies,
		Color:         data.Parameters.Color,
		Duplex:        data.Parameters.Duplex,
		Quality:       data.Parameters.Quality,
		Margins:       data.Parameters.Margins,
		Priority:      data.Parameters.Priority,
		PageCount:     pageCountOf(&data),
		MaxRetries:    model.DefaultMaxRetries,
		Status:        model.StatusPending,
		CreatedAt:     now,
		TempFilePath:  tempPath,
	}
	if err := s.Store.CreateJob(job); err != nil {
		_ = os.Remove(tempPath)
		return errorEnvelope(err)
	}

	s.Queue.Push(job.JobID, job.Priority, job.CreatedAt)
	snapshot := s.Queue.Snapshot()
	position := queuePositionOf(snapshot, job.JobID)
	// Advisory renumbering of every queued job's stored queue_position, in
	// pop order; a failed write is logged, not surfaced to the client.
	for i, item := range snapshot {
		pos := i + 1
		if _, err := s.Store.UpdateJob(item.JobID, model.JobPatch{QueuePosition: &pos}); err != nil {
			log.W.F("handler: failed to renumber queue_position of %s: %v", item.JobID, err)
		}
	}
	s.Metrics.JobsSubmitted.WithLabelValues(job.UserName).Inc()
	s.Metrics.QueueDepth.Set(float64(s.Queue.Size()))

	return codec.Success(codec.ResponseData{
		JobID:         job.JobID,
		QueuePosition: position,
	})
}

// validatePrintJob runs the anchored-regex/bound gauntlet of spec §4.3 over
// every field of a print_job message before any of it is trusted.
func (s *Server) validatePrintJob(claims auth.Claims, data *codec.PrintJobData) error {
	if err := validator.ClientID(data.ClientID); err != nil {
		return err
	}
	if err := validator.Username(data.User); err != nil {
		return err
	}
	if data.User != claims.Username {
		return apperr.New(apperr.Auth, "UNAUTHORIZED", "user does not match authenticated principal").WithField("user")
	}
	if err := validator.FileExtension(data.FileFormat); err != nil {
		return err
	}
	if err := validator.PageSize(data.Parameters.PageSize); err != nil {
		return err
	}
	if err := validator.Orientation(data.Parameters.Orientation); err != nil {
		return err
	}
	if err := validator.Quality(data.Parameters.Quality); err != nil {
		return err
	}
	if err := validator.Copies(data.Parameters.Copies); err != nil {
		return err
	}
	if err := validator.Priority(data.Parameters.Priority); err != nil {
		return err
	}
	if err := validator.Margins(data.Parameters.Margins); err != nil {
		return err
	}
	return nil
}

// handlePing implements the liveness-check message of spec §4.10.
func (s *Server) handlePing(claims auth.Claims) *codec.Envelope {
	return codec.Success(codec.ResponseData{
		Message: "pong",
		Extra: map[string]any{
			"principal": claims.Username,
		},
	})
}

// handleStatus implements the queue/counter snapshot message of spec §4.10.
func (s *Server) handleStatus() *codec.Envelope {
	summary, err := s.Store.Summary()
	if err != nil {
		return errorEnvelope(err)
	}
	return codec.Success(codec.ResponseData{
		Message: "ok",
		Extra: map[string]any{
			"summary":     summary,
			"queue_depth": s.Queue.Size(),
		},
	})
}

// errorEnvelope maps an apperr.Error (or any other error) to a wire error
// response, never leaking an internal message or file path, per spec §4.3/§7.
// Internal errors (and errors that are not an apperr.Error) are logged in
// full before being flattened to a generic message.
func errorEnvelope(err error) *codec.Envelope {
	ae, ok := apperr.As(err)
	if !ok {
		log.E.F("handler: internal error: %v", err)
		return codec.ErrorResponse("SERVER_ERROR", "internal error")
	}
	message := ae.Message
	if ae.Kind == apperr.Internal {
		log.E.F("handler: internal error: %v", ae)
		message = "internal error"
	}
	if ae.Field == "" {
		return codec.ErrorResponse(ae.Code, message)
	}
	return codec.ErrorResponseWithField(ae.Code, message, ae.Field)
}

// pageCountOf reads the client-declared page count for the job's document
// descriptor (spec §3) out of metadata.page_count. The broker never opens
// the payload to count pages itself (spec §4.9's printer backend is a
// submit-only capability interface), so a client that omits it leaves the
// count at zero.
func pageCountOf(data *codec.PrintJobData) int {
	raw, ok := data.Metadata["page_count"]
	if !ok {
		return 0
	}
	if n, ok := raw.(float64); ok && n > 0 {
		return int(n)
	}
	return 0
}

// queuePositionOf returns the 1-based position of jobID in an ordered
// snapshot, or 0 if not found (already dispatched between push and lookup).
func queuePositionOf(items []queue.Item, jobID string) int {
	for i, item := range items {
		if item.JobID == jobID {
			return i + 1
		}
	}
	return 0
}
