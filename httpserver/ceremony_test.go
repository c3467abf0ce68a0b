package httpserver

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/shamir-mnemonic/cryptoutils"
	"github.com/ruteri/shamir-mnemonic/interfaces"
	"github.com/ruteri/shamir-mnemonic/mnemonic"
	"github.com/ruteri/shamir-mnemonic/sss"
)

type testHolder struct {
	id      string
	privPEM []byte
	privKey *ecdsa.PrivateKey
}

func setupCeremony(t *testing.T, threshold, holders int) (*CeremonyHandler, http.Handler, []testHolder) {
	t.Helper()

	pubKeys := make(map[string][]byte)
	hs := make([]testHolder, 0, holders)
	for i := 0; i < holders; i++ {
		privPEM, pubPEM, err := cryptoutils.GenerateKeyPair()
		require.NoError(t, err)
		privKey, err := cryptoutils.ParsePrivateKey([]byte(privPEM))
		require.NoError(t, err)

		id := fmt.Sprintf("holder-%d", i+1)
		pubKeys[id] = []byte(pubPEM)
		hs = append(hs, testHolder{id: id, privPEM: []byte(privPEM), privKey: privKey})
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := NewCeremonyHandler(log, sss.New(mnemonic.DefaultWordlist()), threshold, pubKeys)
	require.NoError(t, err)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return handler, router, hs
}

func signedRequest(t *testing.T, holder testHolder, method, path, body string) *http.Request {
	t.Helper()

	message := path + body
	hash := sha256.Sum256([]byte(message))
	sig, err := ecdsa.SignASN1(rand.Reader, holder.privKey, hash[:])
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Holder-ID", holder.id)
	req.Header.Set("X-Holder-Signature", base64.StdEncoding.EncodeToString(sig))
	return req
}

func TestCeremonyStatus(t *testing.T) {
	_, router, _ := setupCeremony(t, 2, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ceremony/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "initial", resp["state"])
}

func TestCeremonyUnauthorized(t *testing.T) {
	_, router, holders := setupCeremony(t, 2, 3)

	// No auth headers at all.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ceremony/init/generate", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown holder.
	unknown := holders[0]
	unknown.id = "holder-99"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, unknown, http.MethodPost, "/ceremony/init/generate", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid holder, signature from someone else's key.
	forged := holders[0]
	forged.privKey = holders[1].privKey
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, forged, http.MethodPost, "/ceremony/init/generate", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCeremonyGenerateAndDistribute(t *testing.T) {
	handler, router, holders := setupCeremony(t, 2, 3)
	engine := sss.New(mnemonic.DefaultWordlist())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, holders[0], http.MethodPost, "/ceremony/init/generate", ""))
	require.Equal(t, http.StatusOK, rec.Code, "generate should succeed: %s", rec.Body.String())

	var initResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initResp))
	assert.Equal(t, float64(2), initResp["threshold"])
	assert.Equal(t, float64(3), initResp["total_shares"])

	// A second init is rejected.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, holders[1], http.MethodPost, "/ceremony/init/generate", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Each holder retrieves and decrypts their own share.
	shares := make([]interfaces.Mnemonic, 0, len(holders))
	for _, holder := range holders {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(t, holder, http.MethodGet, "/ceremony/share", ""))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp GetShareResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		encrypted, err := base64.StdEncoding.DecodeString(resp.EncryptedShare)
		require.NoError(t, err)
		plaintext, err := cryptoutils.DecryptWithPrivateKey(holder.privPEM, encrypted)
		require.NoError(t, err)
		shares = append(shares, interfaces.ParseMnemonic(string(plaintext)))
	}

	// All shares retrieved: ceremony completes.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ceremony/status", nil))
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "complete", status["state"])

	secret, err := handler.WaitForSecret(t.Context())
	require.NoError(t, err)

	// Any two distributed shares recover the generated secret.
	recovered, err := engine.Recover(shares[:2])
	require.NoError(t, err)
	assert.True(t, recovered.Equal(secret))
}

func TestCeremonyGetShareOnlyOwn(t *testing.T) {
	_, router, holders := setupCeremony(t, 2, 2)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, holders[0], http.MethodPost, "/ceremony/init/generate", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	// holder-1 fetches their share twice; never sees holder-2's.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(t, holders[0], http.MethodGet, "/ceremony/share", ""))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp GetShareResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.ShareIndex)

		// Only holder-1's own key can open it.
		encrypted, err := base64.StdEncoding.DecodeString(resp.EncryptedShare)
		require.NoError(t, err)
		_, err = cryptoutils.DecryptWithPrivateKey(holders[1].privPEM, encrypted)
		assert.Error(t, err)
	}
}

func TestCeremonyRecovery(t *testing.T) {
	handler, router, holders := setupCeremony(t, 3, 5)
	engine := sss.New(mnemonic.DefaultWordlist())

	generated, err := engine.Generate(sss.Config{Threshold: 3, Shares: 5}, rand.Reader)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, holders[0], http.MethodPost, "/ceremony/init/recover", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	submit := func(holder testHolder, share interfaces.Mnemonic) *httptest.ResponseRecorder {
		body, err := json.Marshal(map[string]string{"share": share.String()})
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(t, holder, http.MethodPost, "/ceremony/share", string(body)))
		return rec
	}

	rec = submit(holders[0], generated.Shares[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Resubmitting the same share is rejected.
	rec = submit(holders[0], generated.Shares[0])
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = submit(holders[1], generated.Shares[3])
	require.Equal(t, http.StatusOK, rec.Code)

	// Garbage shares are rejected without affecting progress.
	rec = submit(holders[2], interfaces.Mnemonic{"bogus", "words"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = submit(holders[2], generated.Shares[1])
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["message"], "complete")

	secret, err := handler.WaitForSecret(t.Context())
	require.NoError(t, err)
	assert.True(t, secret.Equal(generated.Secret))
}

func TestCeremonyHandlerValidation(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := sss.New(mnemonic.DefaultWordlist())

	_, pubPEM, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	// Threshold above holder count.
	_, err = NewCeremonyHandler(log, engine, 2, map[string][]byte{"a": []byte(pubPEM)})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)

	// Threshold below minimum.
	_, err = NewCeremonyHandler(log, engine, 1, map[string][]byte{"a": []byte(pubPEM), "b": []byte(pubPEM)})
	assert.ErrorIs(t, err, interfaces.ErrConfiguration)
}

func TestLoadHolderKeys(t *testing.T) {
	_, pubPEM, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	cfg := CeremonyHoldersConfig{
		Holders: []CeremonyHolderMetadata{
			{ID: "alice", PubKey: pubPEM},
			{ID: "bob", PubKey: pubPEM},
		},
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	keys, err := LoadHolderKeys(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, []byte(pubPEM), keys["alice"])

	_, err = LoadHolderKeys(strings.NewReader(`{"holders": [{"id": "x", "pubkey": "not pem"}]}`))
	assert.Error(t, err)

	_, err = LoadHolderKeys(strings.NewReader("not json"))
	assert.Error(t, err)
}
