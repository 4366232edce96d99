package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/parser"
	"github.com/ignite/list-importer/internal/pkg/httputil"
	"github.com/ignite/list-importer/internal/pkg/logger"
	"github.com/ignite/list-importer/internal/progress"
	"github.com/ignite/list-importer/internal/session"
)

// HandleFields returns the canonical field definitions for the mapping UI.
func (s *Service) HandleFields(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"fields": etl.SystemFields()})
}

// createImportResponse is the body returned after a successful parse.
type createImportResponse struct {
	SessionID        string                 `json:"session_id"`
	Filename         string                 `json:"filename"`
	Format           string                 `json:"format"`
	RowCount         int                    `json:"row_count"`
	Headers          []string               `json:"headers"`
	HeaderDetection  parser.HeaderDetection `json:"header_detection"`
	SuggestedMapping etl.ColumnMapping      `json:"suggested_mapping"`
	LowConfidence    bool                   `json:"low_confidence"`
}

// HandleCreateImport accepts a multipart file upload, parses it, and creates
// an import session holding the raw rows. Parse failures are fatal to the
// attempt and reported with their typed kind so the client can tell an
// unsupported format from an empty file.
func (s *Service) HandleCreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, parser.MaxFileSize+1024)
	if err := r.ParseMultipartForm(parser.MaxFileSize); err != nil {
		httputil.BadRequest(w, "file exceeds 10MB size limit")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file field required")
		return
	}
	defer file.Close()

	out, err := parser.Parse(header.Filename, file)
	if err != nil {
		writeParseError(w, err)
		return
	}

	detection := parser.DetectHeaders(out.Headers, out.Records)
	sess := &session.Session{
		Filename:         header.Filename,
		Format:           out.Format,
		ListID:           r.FormValue("list_id"),
		Headers:          out.Headers,
		SuggestedMapping: etl.SuggestMapping(out.Headers),
		LowConfidence:    out.LowConfidence,
		RowCount:         len(out.Records),
	}
	if err := s.sessions.Create(r.Context(), sess, out.Records); err != nil {
		httputil.InternalError(w, err)
		return
	}

	logger.Info("import session created",
		"session", sess.ID, "file", sess.Filename, "format", sess.Format, "rows", sess.RowCount)

	httputil.OK(w, createImportResponse{
		SessionID:        sess.ID,
		Filename:         sess.Filename,
		Format:           sess.Format,
		RowCount:         sess.RowCount,
		Headers:          sess.Headers,
		HeaderDetection:  detection,
		SuggestedMapping: sess.SuggestedMapping,
		LowConfidence:    sess.LowConfidence,
	})
}

func writeParseError(w http.ResponseWriter, err error) {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		httputil.ErrorKind(w, http.StatusUnprocessableEntity, pe.Error(), string(pe.Kind))
		return
	}
	if errors.Is(err, parser.ErrFileTooLarge) {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.InternalError(w, err)
}

// processRequest carries the user-confirmed column mapping.
type processRequest struct {
	Mapping map[string]etl.Field `json:"mapping"`
	ListID  string               `json:"list_id,omitempty"`
}

// HandleProcess runs the clean/validate/dedupe pipeline over a parsed session
// and stores the result for preview. Mapping errors are blocking and
// user-correctable, so they come back as 400s.
func (s *Service) HandleProcess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req processRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	mapping := etl.ColumnMapping(req.Mapping)
	if err := etl.ValidateMapping(mapping); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	records, err := s.sessions.Records(r.Context(), sess.ID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if req.ListID != "" {
		sess.ListID = req.ListID
	}
	existing := s.fetchExisting(r.Context(), sess.ListID)

	tracker := progress.NewTracker(len(records))
	tracker.Subscribe(func(snap progress.Snapshot) { s.sessions.SaveProgress(sess.ID, snap) })
	completeStage(tracker, "parse", fmt.Sprintf("Parsed %d rows", len(records)))

	result, err := s.runStages(tracker, records, mapping, existing)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.sessions.SaveResult(r.Context(), sess.ID, result); err != nil {
		httputil.InternalError(w, err)
		return
	}
	sess.Mapping = mapping
	sess.Status = session.StatusProcessed
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		httputil.InternalError(w, err)
		return
	}

	logger.Info("import processed",
		"session", sess.ID, "cleaned", result.Stats.Cleaned, "valid", result.Stats.Valid,
		"invalid", result.Stats.Invalid, "duplicates", result.Stats.Duplicates,
		"unique", result.Stats.Unique)

	httputil.OK(w, result)
}

// runStages drives the clean/validate/dedupe stages on the tracker while the
// pipeline itself runs synchronously.
func (s *Service) runStages(tracker *progress.Tracker, records []etl.RawRecord, mapping etl.ColumnMapping, existing []etl.CleanedRecord) (*etl.Result, error) {
	result, err := s.pipeline.Process(records, mapping, existing)
	if err != nil {
		return nil, err
	}
	completeStage(tracker, "clean", fmt.Sprintf("Cleaned %d records", result.Stats.Cleaned))
	completeStage(tracker, "validate",
		fmt.Sprintf("%d valid, %d invalid", result.Stats.Valid, result.Stats.Invalid))
	completeStage(tracker, "dedupe",
		fmt.Sprintf("%d unique, %d duplicates", result.Stats.Unique, result.Stats.Duplicates))
	return result, nil
}

func (s *Service) fetchExisting(ctx context.Context, listID string) []etl.CleanedRecord {
	if s.contacts == nil || listID == "" {
		return nil
	}
	existing, err := s.contacts.FetchExisting(ctx, listID)
	if err != nil {
		// Dedup against existing records degrades gracefully; in-file
		// dedup still runs.
		logger.Warn("existing contacts unavailable", "list", listID, "error", err)
		return nil
	}
	return existing
}

// uploadRequest optionally overrides the configured batch size for one run.
type uploadRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// HandleStartUpload kicks off the batch upload in the background and returns
// 202. Progress is polled via HandleProgress; per-batch failures are counted,
// never surfaced as HTTP errors.
func (s *Service) HandleStartUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if sess.Status != session.StatusProcessed {
		httputil.BadRequest(w, fmt.Sprintf("session is %s, run process first", sess.Status))
		return
	}
	var req uploadRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	result, err := s.sessions.Result(r.Context(), sess.ID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	tracker := progress.NewTracker(len(result.Unique))
	tracker.Subscribe(func(snap progress.Snapshot) { s.sessions.SaveProgress(sess.ID, snap) })
	completeStage(tracker, "parse", "")
	completeStage(tracker, "clean", "")
	completeStage(tracker, "validate", "")
	completeStage(tracker, "dedupe", "")

	up := s.uploader
	if req.BatchSize > 0 {
		up = s.newUploader(req.BatchSize)
	}

	sess.Status = session.StatusUploading
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		httputil.InternalError(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), session.TTL)
		defer cancel()

		summary, err := up.Upload(ctx, result.Unique, tracker)
		status := session.StatusCompleted
		if err != nil || summary.Failed > 0 {
			status = session.StatusFailed
		}
		sess.Status = status
		if err := s.sessions.Save(ctx, sess); err != nil {
			logger.Error("session save after upload failed", "session", sess.ID, "error", err)
		}
	}()

	httputil.Accepted(w, map[string]any{
		"session_id": sess.ID,
		"status":     session.StatusUploading,
		"records":    len(result.Unique),
	})
}

// HandleProgress returns the latest progress snapshot for a session.
func (s *Service) HandleProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Progress(r.Context(), sess.ID)
	if errors.Is(err, session.ErrNotFound) {
		httputil.OK(w, progress.NewTracker(sess.RowCount).Snapshot())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, snap)
}

// HandleReset discards all session state ("Start Over"). Batches already
// submitted are not revoked.
func (s *Service) HandleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "reset"})
}

func (s *Service) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		httputil.NotFound(w, "import session not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	return sess, true
}

// completeStage replays an already-finished stage on a fresh tracker so a
// snapshot built mid-dialog shows earlier phases as done.
func completeStage(tracker *progress.Tracker, name, message string) {
	idx := tracker.StageIndex(name)
	tracker.StartStage(idx, "")
	tracker.CompleteStage(idx, message)
}
