package httpserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/shamir-mnemonic/cryptoutils"
	"github.com/ruteri/shamir-mnemonic/interfaces"
	"github.com/ruteri/shamir-mnemonic/sss"
)

// CeremonyState represents the current state of the ceremony.
type CeremonyState int

const (
	// StateInitial is the initial state before any ceremony action is taken.
	StateInitial CeremonyState = iota

	// StateDistributing indicates a secret has been generated and its shares
	// are being handed out to their holders.
	StateDistributing

	// StateRecovering indicates the recovery process is underway collecting shares.
	StateRecovering

	// StateComplete indicates the ceremony has finished.
	StateComplete
)

func stateToString(state CeremonyState) string {
	switch state {
	case StateInitial:
		return "initial"
	case StateDistributing:
		return "distributing_shares"
	case StateRecovering:
		return "recovering"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// SecureShare is a share mnemonic encrypted for a specific holder.
//
// Each share is:
//   - Assigned to a specific holder by ID
//   - Encrypted with that holder's public key
//   - Only retrievable by that holder
//   - Tracked for retrieval status
type SecureShare struct {
	// HolderID is the identifier of the holder for whom this share is intended.
	HolderID string

	// ShareIndex is the share's index within the split.
	ShareIndex int

	// EncryptedShare is the share mnemonic encrypted with the holder's public key.
	EncryptedShare []byte

	// Retrieved indicates whether the holder has already retrieved this share.
	Retrieved bool
}

// CeremonyHandler processes HTTP requests for share distribution and recovery.
//
// The handler implements a ceremony that:
//   - Verifies holder identity with cryptographic signatures
//   - Encrypts each share mnemonic for its designated holder
//   - Ensures no holder can access shares intended for other holders
//   - Collects shares during recovery until the secret is reconstructed
//   - Tracks the ceremony state and signals completion
type CeremonyHandler struct {
	mu            sync.RWMutex
	log           *slog.Logger
	engine        *sss.Engine
	state         CeremonyState
	threshold     int
	holderPubKeys map[string][]byte       // Map of holder ID to public key PEM
	holderShares  map[string]*SecureShare // Map of holder ID to their encrypted share
	collector     *sss.Collector          // Set while recovering
	secret        interfaces.Mnemonic     // Set once complete
	completeChan  chan struct{}
}

// NewCeremonyHandler creates a handler for a ceremony among the given
// holders. The total share count equals the number of holders; threshold is
// how many of them recovery requires.
func NewCeremonyHandler(log *slog.Logger, engine *sss.Engine, threshold int, holderPubKeys map[string][]byte) (*CeremonyHandler, error) {
	if err := (sss.Config{Threshold: threshold, Shares: len(holderPubKeys)}).Validate(); err != nil {
		return nil, err
	}

	return &CeremonyHandler{
		log:           log,
		engine:        engine,
		state:         StateInitial,
		threshold:     threshold,
		holderPubKeys: holderPubKeys,
		holderShares:  make(map[string]*SecureShare),
		completeChan:  make(chan struct{}),
	}, nil
}

// WaitForSecret blocks until the ceremony completes or the context is
// cancelled, then returns the secret mnemonic. After a distribution ceremony
// this is the freshly generated secret; after a recovery ceremony it is the
// reconstructed one.
func (h *CeremonyHandler) WaitForSecret(ctx context.Context) (interfaces.Mnemonic, error) {
	select {
	case <-h.completeChan:
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.secret, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegisterRoutes configures the HTTP router for the ceremony API.
//
// The router provides endpoints:
//   - /ceremony/status: check ceremony status
//   - /ceremony/init/generate: generate a secret and prepare shares
//   - /ceremony/init/recover: initiate recovery
//   - /ceremony/share: fetch a share during distribution, or submit one during recovery
func (h *CeremonyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ceremony/status", h.handleStatus)
	r.Post("/ceremony/init/generate", h.handleInitGenerate)
	r.Post("/ceremony/init/recover", h.handleInitRecover)
	r.Post("/ceremony/share", h.handleSubmitShare)
	r.Get("/ceremony/share", h.handleGetShare)
}

// handleStatus returns the current status of the ceremony.
//
// Endpoint: GET /ceremony/status
func (h *CeremonyHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	state := h.state
	threshold := h.threshold
	totalShares := len(h.holderPubKeys)
	h.mu.RUnlock()

	resp := map[string]interface{}{
		"state": stateToString(state),
	}

	if state == StateDistributing || state == StateRecovering {
		resp["threshold"] = threshold
		resp["total_shares"] = totalShares
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleInitGenerate generates a fresh secret and prepares its shares.
//
// This endpoint:
//   - Verifies the requesting holder is authorized
//   - Generates the secret and splits it, one share per holder
//   - Encrypts each share mnemonic with its designated holder's public key
//   - Returns metadata about the share assignment (not the actual shares)
//
// Endpoint: POST /ceremony/init/generate
// Body (optional): {"long": <bool>}
func (h *CeremonyHandler) handleInitGenerate(w http.ResponseWriter, r *http.Request) {
	holderID, ok := h.verifyHolder(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateInitial {
		http.Error(w, "Ceremony already in progress or complete", http.StatusBadRequest)
		return
	}

	var params struct {
		Long bool `json:"long"`
	}
	if r.Body != nil {
		// An empty body means default parameters.
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	cfg := sss.Config{Threshold: h.threshold, Shares: len(h.holderPubKeys), Long: params.Long}
	generated, err := h.engine.Generate(cfg, rand.Reader)
	if err != nil {
		h.log.Error("Failed to generate shares", "err", err, "holderID", holderID)
		http.Error(w, "Failed to generate shares", http.StatusInternalServerError)
		return
	}

	// Deterministic share assignment by holder ID.
	holderIDs := make([]string, 0, len(h.holderPubKeys))
	for id := range h.holderPubKeys {
		holderIDs = append(holderIDs, id)
	}
	sort.Strings(holderIDs)

	holderShares := make(map[string]*SecureShare)
	for i, targetHolderID := range holderIDs {
		pubKeyPEM := h.holderPubKeys[targetHolderID]

		encryptedShare, err := cryptoutils.EncryptWithPublicKey(pubKeyPEM, []byte(generated.Shares[i].String()))
		if err != nil {
			h.log.Error("Failed to encrypt share", "err", err, "holderID", targetHolderID)
			http.Error(w, "Failed to encrypt shares", http.StatusInternalServerError)
			return
		}

		holderShares[targetHolderID] = &SecureShare{
			HolderID:       targetHolderID,
			ShareIndex:     i + 1,
			EncryptedShare: encryptedShare,
			Retrieved:      false,
		}
	}

	h.state = StateDistributing
	h.secret = generated.Secret
	h.holderShares = holderShares

	shareAssignments := make([]map[string]interface{}, 0, len(h.holderShares))
	for holderID, secureShare := range h.holderShares {
		shareAssignments = append(shareAssignments, map[string]interface{}{
			"holder_id":   holderID,
			"share_index": secureShare.ShareIndex,
		})
	}

	resp := map[string]interface{}{
		"message":           "Secret generated and shares prepared successfully",
		"share_assignments": shareAssignments,
		"threshold":         h.threshold,
		"total_shares":      len(h.holderPubKeys),
		"secret_bits":       generated.SecretBits,
		"instructions":      "Each holder must retrieve their share using GET /ceremony/share",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)

	h.log.Info("Secret generated and shares prepared for distribution", "holderID", holderID,
		"threshold", h.threshold, "totalShares", len(h.holderPubKeys))
}

type GetShareResponse struct {
	ShareIndex     int    `json:"share_index"`
	EncryptedShare string `json:"encrypted_share"` // base64 encoded
}

// handleGetShare allows a holder to retrieve their share.
//
// Each holder can only retrieve their own share. Once every holder has
// retrieved theirs, the ceremony transitions to the complete state.
//
// Endpoint: GET /ceremony/share
func (h *CeremonyHandler) handleGetShare(w http.ResponseWriter, r *http.Request) {
	holderID, ok := h.verifyHolder(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateDistributing {
		http.Error(w, "No shares available for retrieval", http.StatusBadRequest)
		return
	}

	secureShare, exists := h.holderShares[holderID]
	if !exists {
		http.Error(w, "No share assigned to this holder", http.StatusNotFound)
		return
	}

	secureShare.Retrieved = true

	allRetrieved := true
	for _, share := range h.holderShares {
		if !share.Retrieved {
			allRetrieved = false
			break
		}
	}

	if allRetrieved {
		h.state = StateComplete
		close(h.completeChan)
		h.log.Info("All shares have been retrieved, ceremony complete")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetShareResponse{
		ShareIndex:     secureShare.ShareIndex,
		EncryptedShare: base64.StdEncoding.EncodeToString(secureShare.EncryptedShare),
	})

	h.log.Info("Holder retrieved their share", "holderID", holderID, "shareIndex", secureShare.ShareIndex)
}

// handleInitRecover initiates the recovery process.
//
// Endpoint: POST /ceremony/init/recover
func (h *CeremonyHandler) handleInitRecover(w http.ResponseWriter, r *http.Request) {
	holderID, ok := h.verifyHolder(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateInitial {
		http.Error(w, "Ceremony already in progress or complete", http.StatusBadRequest)
		return
	}

	h.collector = sss.NewCollector(h.engine)
	h.state = StateRecovering

	resp := map[string]interface{}{
		"message":      "Recovery mode initiated",
		"threshold":    h.threshold,
		"instructions": "Holders must submit their shares using POST /ceremony/share",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)

	h.log.Info("Recovery process initiated", "holderID", holderID, "threshold", h.threshold)
}

// handleSubmitShare handles share submissions during recovery.
//
// The share travels as its mnemonic text. Submissions are authenticated the
// same way as every other ceremony request; the share collector rejects
// malformed and duplicate shares.
//
// Endpoint: POST /ceremony/share
// Body: {"share": "<mnemonic words>"}
func (h *CeremonyHandler) handleSubmitShare(w http.ResponseWriter, r *http.Request) {
	holderID, ok := h.verifyHolder(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateRecovering {
		http.Error(w, "Ceremony not in recovery mode", http.StatusBadRequest)
		return
	}

	var submission struct {
		Share string `json:"share"`
	}
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	remaining, err := h.collector.Submit(interfaces.ParseMnemonic(submission.Share))
	if err != nil {
		h.log.Error("Share submission failed", "err", err, "holderID", holderID)
		http.Error(w, "Share submission failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if h.collector.Ready() {
		secret, err := h.collector.Secret()
		if err != nil {
			h.log.Error("Failed to read recovered secret", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		h.secret = secret
		h.state = StateComplete
		close(h.completeChan)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "Secret recovered successfully - ceremony complete",
		})

		h.log.Info("Secret successfully recovered - ceremony complete", "holderID", holderID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Share accepted, waiting for more shares",
		"remaining": remaining,
	})

	h.log.Info("Share accepted", "holderID", holderID, "remaining", remaining)
}

// verifyHolder checks if the request is from a registered holder.
//
// The function verifies that:
//  1. The holder is registered (has a known public key)
//  2. The request carries a valid signature over the path and body, created
//     with the holder's private key
func (h *CeremonyHandler) verifyHolder(r *http.Request) (string, bool) {
	holderID := r.Header.Get("X-Holder-ID")
	holderSignatureStr := r.Header.Get("X-Holder-Signature")

	if holderID == "" || holderSignatureStr == "" {
		return "", false
	}

	h.mu.RLock()
	pubKeyPEM, exists := h.holderPubKeys[holderID]
	h.mu.RUnlock()

	if !exists {
		h.log.Warn("Authentication failed: unknown holder ID", "holderID", holderID)
		return holderID, false
	}

	holderSignature, err := base64.StdEncoding.DecodeString(holderSignatureStr)
	if err != nil {
		h.log.Warn("Authentication failed: invalid signature encoding", "holderID", holderID, "err", err)
		return holderID, false
	}

	block, _ := pem.Decode(pubKeyPEM)
	if block == nil {
		h.log.Error("Failed to decode holder public key PEM", "holderID", holderID)
		return holderID, false
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		h.log.Error("Failed to parse holder public key", "holderID", holderID, "err", err)
		return holderID, false
	}

	ecdsaPubKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		h.log.Error("Holder public key is not an ECDSA key", "holderID", holderID)
		return holderID, false
	}

	// Read the request body without consuming it
	var bodyBytes []byte
	if r.Body != nil {
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			h.log.Error("Failed to read request body", "err", err)
			return holderID, false
		}

		// Restore the body for later handlers
		r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	// The signed message is the path followed by the body
	message := r.URL.Path
	if len(bodyBytes) > 0 {
		message += string(bodyBytes)
	}

	hash := sha256.Sum256([]byte(message))

	if !ecdsa.VerifyASN1(ecdsaPubKey, hash[:], holderSignature) {
		h.log.Warn("Authentication failed: invalid signature", "holderID", holderID)
		return holderID, false
	}

	h.log.Debug("Holder authentication successful", "holderID", holderID)
	return holderID, true
}

type CeremonyHoldersConfig struct {
	Holders []CeremonyHolderMetadata `json:"holders"`
}

type CeremonyHolderMetadata struct {
	ID     string `json:"id"`
	PubKey string `json:"pubkey"`
}

// LoadHolderKeys loads holder public keys from a JSON file.
//
// The JSON file should contain a "holders" array with entries that include:
//   - "id": A unique identifier for the holder
//   - "pubkey": The holder's public key in PEM format
func LoadHolderKeys(r io.Reader) (map[string][]byte, error) {
	var data CeremonyHoldersConfig

	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode holder keys JSON: %w", err)
	}

	result := make(map[string][]byte)
	for _, holder := range data.Holders {
		block, _ := pem.Decode([]byte(holder.PubKey))
		if block == nil {
			return nil, fmt.Errorf("invalid PEM data for holder %s", holder.ID)
		}

		if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			return nil, fmt.Errorf("invalid public key for holder %s: %w", holder.ID, err)
		}

		result[holder.ID] = []byte(holder.PubKey)
	}

	return result, nil
}
