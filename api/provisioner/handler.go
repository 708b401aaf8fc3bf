package provisioner

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruteri/tee-secret-provisioner/api"
	"github.com/ruteri/tee-secret-provisioner/attestation"
	"github.com/ruteri/tee-secret-provisioner/cryptoutils"
	"github.com/ruteri/tee-secret-provisioner/interfaces"
)

// Message1Processor is the part of provider.ServiceProvider the handler needs.
type Message1Processor interface {
	ProcessMessage1Context(ctx context.Context, msg1 *interfaces.Message1) (*interfaces.Message2, uint32, error)
	Identity() *cryptoutils.ProviderIdentity
	Mode() attestation.Mode
}

// Handler serves the provisioning exchange over HTTP.
type Handler struct {
	provider      Message1Processor
	verifyTimeout time.Duration
	log           *slog.Logger
}

// NewHandler creates a handler. A zero verifyTimeout leaves the request context as the only deadline.
func NewHandler(provider Message1Processor, verifyTimeout time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		provider:      provider,
		verifyTimeout: verifyTimeout,
		log:           log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/attested/provision", h.HandleProvision)
	r.Get("/api/public/provider_pubkey", h.HandleProviderPubkey)
}

// HandleProvision runs one provisioning exchange.
//
// URL format: POST /api/attested/provision
//
// Request body: message1 in its binary wire format
//
// Response: message2 in its binary wire format. Every response, including errors,
// carries the exchange identifier in the X-Provisioning-Session header.
func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	w.Header().Set(api.ProvisioningSessionHeader, sessionID)
	w.Header().Set(api.AttestationModeHeader, string(h.provider.Mode()))
	log := h.log.With(slog.String("session", sessionID))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, interfaces.MaxMessage1Size))
	if err != nil {
		log.Warn("Failed to read request body", "err", err)
		http.Error(w, "Failed to read message1", http.StatusBadRequest)
		return
	}

	msg1, err := interfaces.UnmarshalMessage1(body)
	if err != nil {
		log.Warn("Malformed message1", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.verifyTimeout)
		defer cancel()
	}

	start := time.Now()
	msg2, size, err := h.provider.ProcessMessage1Context(ctx, msg1)
	if err != nil {
		status := StatusForError(ctx, err)
		log.Warn("Provisioning rejected",
			"err", err,
			slog.Int("status", status),
			slog.Int("reportSize", len(msg1.Report)),
			slog.Duration("duration", time.Since(start)))

		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
		http.Error(w, msg, status)
		return
	}

	data, err := msg2.MarshalBinary()
	if err != nil || uint32(len(data)) != size {
		log.Error("Failed to encode message2", "err", err, slog.Int("size", len(data)))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	log.Info("Secrets provisioned", slog.Duration("duration", time.Since(start)))

	w.Header().Set("Content-Type", api.BinaryContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error("Failed to write message2", "err", err)
	}
}

// HandleProviderPubkey returns the provider public key for embedding in the enclave.
//
// URL format: GET /api/public/provider_pubkey?format=c|go|hex
//
// The default format is the C initializer consumed by the enclave build.
// The hex format is the little-endian x || y wire encoding.
func (h *Handler) HandleProviderPubkey(w http.ResponseWriter, r *http.Request) {
	identity := h.provider.Identity()

	format := r.URL.Query().Get("format")
	if format == "" {
		format = api.PubkeyFormatC
	}

	var buf bytes.Buffer
	switch format {
	case api.PubkeyFormatHex:
		pub := identity.PublicKeyBytes()
		buf.WriteString(hex.EncodeToString(pub[:]))
		buf.WriteByte('\n')
	case api.PubkeyFormatC, api.PubkeyFormatGo:
		if err := identity.ExportPublicKeyCode(&buf, cryptoutils.PublicKeyFormat(format)); err != nil {
			h.log.Error("Failed to export provider public key", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, "Unsupported format, use c, go or hex", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// StatusForError maps a provisioning error to an HTTP status. A report verification
// failure caused by ctx expiring becomes 504.
func StatusForError(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, interfaces.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrReportVerificationFailed) && ctx.Err() != nil:
		return http.StatusGatewayTimeout
	case errors.Is(err, interfaces.ErrAttestationFailure):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
