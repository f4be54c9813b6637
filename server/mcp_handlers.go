package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/internal/jsonrpc"
	"github.com/jrsteele09/go-mcp-gateway/mcpserver"
	"github.com/jrsteele09/go-mcp-gateway/sessions"
	"github.com/jrsteele09/go-mcp-gateway/token"
	"github.com/rs/zerolog"
)

const (
	maxMCPBody       = 4 << 20
	defaultKeepAlive = 30 * time.Second
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType(contentTypeSSE)
	postAcceptMediaTypes  = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

// mcpHandle is the per-session protocol endpoint the registry owns.
type mcpHandle interface {
	sessions.Handle
	Handle(ctx context.Context, caller mcpserver.Caller, raw []byte) *jsonrpc.Response
}

var _ mcpHandle = (*mcpserver.Server)(nil)

// resolvedSession is a live session together with its persisted state.
type resolvedSession struct {
	session *sessions.Session
	handle  mcpHandle
	state   *sessions.State
}

func (rs *resolvedSession) caller(ident *token.Identity) mcpserver.Caller {
	return mcpserver.Caller{
		SessionID:    rs.session.ID,
		Identity:     ident,
		TenantAPIKey: rs.state.TenantAPIKey,
	}
}

// MCPMessageHandler accepts one JSON-RPC message for a tenant (POST /mcp/{tenantId}).
func (s *Server) MCPMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.PathValue("tenantId")

		ident, ok := s.authenticate(w, r, tenantID)
		if !ok {
			return
		}

		if ctype, err := contenttype.GetMediaType(r); err != nil || !ctype.Matches(jsonMediaType) {
			writeJSONError(w, "invalid_request", "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		if _, _, err := contenttype.GetAcceptableMediaType(r, postAcceptMediaTypes); err != nil {
			writeJSONError(w, "invalid_request", "Accept must allow application/json", http.StatusNotAcceptable)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBody))
		if err != nil {
			writeJSONError(w, "invalid_request", "request body too large or unreadable", http.StatusRequestEntityTooLarge)
			return
		}

		rs, err := s.resolveSession(ctx, tenantID, ident, r.Header.Get(headerSessionID), r.Header.Get(headerTenantAPIKey))
		if err != nil {
			s.writeSessionError(w, r, requestIDOf(body), err)
			return
		}
		w.Header().Set(headerSessionID, rs.session.ID)

		resp := s.dispatch(ctx, rs.handle, rs.caller(ident), body)
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MCPCloseHandler ends a session explicitly (DELETE /mcp/{tenantId}).
func (s *Server) MCPCloseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.PathValue("tenantId")

		ident, ok := s.authenticate(w, r, tenantID)
		if !ok {
			return
		}

		sessionID := r.Header.Get(headerSessionID)
		if sessionID == "" {
			writeJSONError(w, "invalid_request", headerSessionID+" header is required", http.StatusBadRequest)
			return
		}

		found := false
		if sess, ok := s.sessions.Get(tenantID, sessionID); ok {
			if sess.UserID != ident.Subject {
				writeJSONError(w, "invalid_request", "unknown session", http.StatusNotFound)
				return
			}
			found = s.sessions.Delete(tenantID, sessionID)
		}

		st, err := s.state.Get(ctx, sessionID)
		switch {
		case err == nil:
			if st.TenantID == tenantID && (st.ResolvedUserID == "" || st.ResolvedUserID == ident.Subject) {
				if err := s.state.Delete(ctx, sessionID); err != nil {
					s.writeStoreError(w, r, err)
					return
				}
				found = true
			}
		case apperrors.Is(err, sessions.ErrStateNotFound):
		default:
			s.writeStoreError(w, r, err)
			return
		}

		if !found {
			writeJSONError(w, "invalid_request", "unknown session", http.StatusNotFound)
			return
		}
		zerolog.Ctx(ctx).Info().Str("tenant_id", tenantID).Str("session_id", sessionID).Msg("mcp session closed")
		w.WriteHeader(http.StatusNoContent)
	}
}

// MCPEventsHandler opens an event stream for a session (GET /mcp/{tenantId}/sse).
// The stream announces the session, then stays open with keep-alive comments
// until the client goes away.
func (s *Server) MCPEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.PathValue("tenantId")

		ident, ok := s.authenticate(w, r, tenantID)
		if !ok {
			return
		}

		if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
			writeJSONError(w, "invalid_request", "Accept must allow text/event-stream", http.StatusNotAcceptable)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, "server_error", "streaming unsupported", http.StatusInternalServerError)
			return
		}

		rs, err := s.resolveSession(ctx, tenantID, ident, r.Header.Get(headerSessionID), r.Header.Get(headerTenantAPIKey))
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}

		w.Header().Set(headerSessionID, rs.session.ID)
		w.Header().Set("Content-Type", contentTypeSSE)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		logger := zerolog.Ctx(ctx).With().Str("session_id", rs.session.ID).Logger()
		caller := rs.caller(ident)

		initParams := map[string]any{"clientInfo": map[string]string{"name": "sse"}}
		if pv := r.Header.Get(headerProtocolVersion); pv != "" {
			initParams["protocolVersion"] = pv
		}
		steps := []struct {
			event  string
			method string
			params any
		}{
			{"initialize", mcpserver.MethodInitialize, initParams},
			{"tools", mcpserver.MethodToolsList, nil},
			{"resources", mcpserver.MethodResourcesList, nil},
		}
		for i, step := range steps {
			raw, err := encodeRequest(fmt.Sprintf("sse-%d", i), step.method, step.params)
			if err != nil {
				logger.Err(err).Str("method", step.method).Msg("encoding sse request")
				return
			}
			if err := writeSSEEvent(w, flusher, step.event, s.dispatch(ctx, rs.handle, caller, raw)); err != nil {
				logger.Debug().Err(err).Msg("sse client went away")
				return
			}
		}
		if err := writeSSEEvent(w, flusher, "ready", map[string]string{"sessionId": rs.session.ID}); err != nil {
			return
		}

		interval := s.keepAlive
		if interval <= 0 {
			interval = defaultKeepAlive
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug().Msg("sse stream closed")
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// authenticate resolves the bearer token. On failure the 401 challenge has
// been written and ok is false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, tenantID string) (*token.Identity, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		s.challenge(w, tenantID, "missing bearer token")
		return nil, false
	}

	ident, err := s.identity.Resolve(r.Context(), raw)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected")
		s.challenge(w, tenantID, "invalid bearer token")
		return nil, false
	}

	// Resolvers may share identities between calls; never write to theirs.
	id := *ident
	id.Raw = raw
	return &id, true
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// challenge writes an RFC 6750 bearer challenge pointing at the protected
// resource metadata for the tenant.
func (s *Server) challenge(w http.ResponseWriter, tenantID, description string) {
	metadataURL := s.issuer() + RouteWellKnownProtectedResource + RouteMCPBase + "/" + url.PathEscape(tenantID)
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm=%q, resource_metadata=%q, error="invalid_token", error_description=%q`,
		s.config.GetAppName(), metadataURL, description,
	))
	writeJSONError(w, "invalid_token", description, http.StatusUnauthorized)
}

// resolveSession finds the session a request belongs to. A live session owned by
// the caller is reused; an id the registry has forgotten but the state store
// still knows is restored under the same id; anything else opens a new session.
func (s *Server) resolveSession(ctx context.Context, tenantID string, ident *token.Identity, requestedID, apiKey string) (*resolvedSession, error) {
	logger := zerolog.Ctx(ctx)

	if requestedID != "" {
		if sess, ok := s.sessions.Get(tenantID, requestedID); ok {
			if sess.UserID == ident.Subject {
				return s.reuseSession(ctx, sess, ident, apiKey)
			}
			logger.Warn().Str("session_id", requestedID).Msg("session belongs to another user, opening a new one")
		} else {
			rs, err := s.restoreSession(ctx, tenantID, requestedID, ident, apiKey)
			if err == nil {
				return rs, nil
			}
			if !apperrors.Is(err, sessions.ErrStateNotFound) {
				return nil, err
			}
			logger.Debug().Str("session_id", requestedID).Msg("unknown session id, opening a new one")
		}
	}
	return s.createSession(ctx, tenantID, ident, apiKey)
}

func (s *Server) reuseSession(ctx context.Context, sess *sessions.Session, ident *token.Identity, apiKey string) (*resolvedSession, error) {
	handle, err := handleOf(sess)
	if err != nil {
		return nil, err
	}

	patch := sessions.StatePatch{BearerToken: &ident.Raw, ResolvedUserID: &ident.Subject}
	if apiKey != "" {
		patch.TenantAPIKey = &apiKey
	}
	st, err := s.state.Update(ctx, sess.ID, patch)
	if apperrors.Is(err, sessions.ErrStateNotFound) {
		// The state expired while the registry still held the session.
		st = &sessions.State{TenantID: sess.TenantID, BearerToken: ident.Raw, ResolvedUserID: ident.Subject, TenantAPIKey: apiKey}
		err = s.state.Set(ctx, sess.ID, st)
	}
	if err != nil {
		return nil, err
	}
	return &resolvedSession{session: sess, handle: handle, state: st}, nil
}

func (s *Server) restoreSession(ctx context.Context, tenantID, sessionID string, ident *token.Identity, apiKey string) (*resolvedSession, error) {
	st, err := s.state.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.TenantID != tenantID || (st.ResolvedUserID != "" && st.ResolvedUserID != ident.Subject) {
		zerolog.Ctx(ctx).Warn().Str("session_id", sessionID).Msg("stored session state belongs to another tenant or user")
		return nil, sessions.ErrStateNotFound
	}

	sess, err := s.sessions.Restore(tenantID, sessionID, ident.Subject, s.dispatcher.NewServer(tenantID, ident.Subject))
	if err != nil {
		return nil, err
	}
	handle, err := handleOf(sess)
	if err != nil {
		return nil, err
	}

	st.BearerToken = ident.Raw
	st.ResolvedUserID = ident.Subject
	if apiKey != "" {
		st.TenantAPIKey = apiKey
	}
	if err := s.state.Set(ctx, sessionID, st); err != nil {
		return nil, err
	}

	s.metrics.sessionOpened("restored")
	zerolog.Ctx(ctx).Info().Str("tenant_id", tenantID).Str("session_id", sessionID).Msg("mcp session restored")
	return &resolvedSession{session: sess, handle: handle, state: st}, nil
}

func (s *Server) createSession(ctx context.Context, tenantID string, ident *token.Identity, apiKey string) (*resolvedSession, error) {
	handle := s.dispatcher.NewServer(tenantID, ident.Subject)
	sessionID, err := s.sessions.Create(tenantID, ident.Subject, handle)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	st := &sessions.State{TenantID: tenantID, BearerToken: ident.Raw, ResolvedUserID: ident.Subject, TenantAPIKey: apiKey}
	if err := s.state.Set(ctx, sessionID, st); err != nil {
		s.sessions.Delete(tenantID, sessionID)
		return nil, err
	}

	sess, ok := s.sessions.Get(tenantID, sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s vanished after create: %w", sessionID, apperrors.ErrInternal)
	}

	s.metrics.sessionOpened("created")
	zerolog.Ctx(ctx).Info().Str("tenant_id", tenantID).Str("session_id", sessionID).Str("user_id", ident.Subject).Msg("mcp session created")
	return &resolvedSession{session: sess, handle: handle, state: st}, nil
}

func handleOf(sess *sessions.Session) (mcpHandle, error) {
	h, ok := sess.Handle.(mcpHandle)
	if !ok {
		return nil, fmt.Errorf("session %s holds a %T: %w", sess.ID, sess.Handle, apperrors.ErrInternal)
	}
	return h, nil
}

// dispatch hands a message to the session. Whatever goes wrong, the client
// gets a JSON-RPC envelope back.
func (s *Server) dispatch(ctx context.Context, handle mcpHandle, caller mcpserver.Caller, body []byte) (resp *jsonrpc.Response) {
	defer func() {
		if rv := recover(); rv != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", rv).Msg("mcp dispatch panicked")
			s.metrics.mcpMessage("panic")
			resp = jsonrpc.NewErrorResponse(requestIDOf(body), jsonrpc.ErrorCodeInternalError, "", nil)
		}
	}()

	resp = handle.Handle(ctx, caller, body)
	switch {
	case resp == nil:
		s.metrics.mcpMessage("notification")
	case resp.Error != nil:
		s.metrics.mcpMessage("error")
	default:
		s.metrics.mcpMessage("ok")
	}
	return resp
}

// writeSessionError answers an MCP POST whose session could not be resolved.
func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, id *jsonrpc.RequestID, err error) {
	if apperrors.Is(err, apperrors.ErrStoreUnavailable) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("session store unavailable")
		s.metrics.storeDown()
		w.Header().Set("Retry-After", retryAfterSeconds(s.retryAfter))
		writeJSON(w, http.StatusServiceUnavailable, jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError,
			"session store unavailable", map[string]any{"retryable": true}))
		return
	}
	zerolog.Ctx(r.Context()).Err(err).Msg("resolving mcp session")
	writeJSON(w, http.StatusOK, jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "", nil))
}

// writeStoreError answers a non JSON-RPC request that failed on the session layer.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.Is(err, apperrors.ErrStoreUnavailable) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("session store unavailable")
		s.metrics.storeDown()
		w.Header().Set("Retry-After", retryAfterSeconds(s.retryAfter))
		writeJSONError(w, "temporarily_unavailable", "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	zerolog.Ctx(r.Context()).Err(err).Msg("session layer failed")
	writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
}

func requestIDOf(body []byte) *jsonrpc.RequestID {
	req, _ := jsonrpc.ParseRequest(body)
	if req == nil {
		return nil
	}
	return req.ID
}

func encodeRequest(id, method string, params any) ([]byte, error) {
	req := jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         method,
		ID:             jsonrpc.NewRequestID(id),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		req.Params = raw
	}
	return json.Marshal(req)
}

func writeSSEEvent(w io.Writer, f http.Flusher, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	f.Flush()
	return nil
}
