package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/crypto/envelope"
	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/keychain"
	"github.com/uledev/taskchain/internal/payload"
	"github.com/uledev/taskchain/internal/store"
)

// PullOutcome is the result of a successful pull.
type PullOutcome int

const (
	// PullOK means remote data was fetched, decrypted and merged.
	PullOK PullOutcome = iota
	// PullNotFound means the server has no blob for this chain yet.
	PullNotFound
)

// pullResponse mirrors the transport's GET body.
type pullResponse struct {
	Message string `json:"message"`
	Data    *struct {
		EncryptedString string    `json:"encryptedString"`
		CreatedAt       time.Time `json:"createdAt"`
	} `json:"data"`
}

// pushRequest mirrors the transport's POST body.
type pushRequest struct {
	EncryptedString string `json:"encryptedString"`
	CreatedAt       string `json:"createdAt"`
}

// Client performs pull/push against the sync server for one chain.
// The compressed public key hex is sent as the Authorization credential:
// it both selects the blob and authorizes access to it. Payload
// confidentiality rests entirely on the private key staying local.
type Client struct {
	baseURL string
	keys    keychain.KeyPair
	store   *store.Store
	http    *http.Client
	log     *zap.Logger
}

// NewClient constructs a sync client. httpClient may be nil.
func NewClient(baseURL string, keys keychain.KeyPair, st *store.Store, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: baseURL, keys: keys, store: st, http: httpClient, log: log}
}

// Pull fetches the chain's blob, decrypts, validates and merges it into the
// local store. A missing blob is PullNotFound, not an error.
func (c *Client) Pull(ctx context.Context) (PullOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: pull: %v", errs.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return PullNotFound, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: pull: status %d", errs.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: pull: status %d: %s", errs.ErrNetwork, resp.StatusCode, body)
	}

	var dto pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return 0, fmt.Errorf("%w: pull: decode body: %v", errs.ErrNetwork, err)
	}
	if dto.Data == nil {
		return PullNotFound, nil
	}

	env, err := envelope.Decode(dto.Data.EncryptedString)
	if err != nil {
		return 0, err
	}
	plaintext, err := envelope.Open(env, c.keys)
	if err != nil {
		return 0, err
	}
	remote, err := payload.Normalize(plaintext)
	if err != nil {
		return 0, err
	}
	if err := Merge(ctx, remote, c.store); err != nil {
		return 0, err
	}
	return PullOK, nil
}

// Push snapshots the local store, encrypts it and replaces the chain's blob.
func (c *Client) Push(ctx context.Context) error {
	tasks, workspaces := c.store.Snapshot()
	p := payload.Snapshot(tasks, workspaces)
	plaintext, err := json.Marshal(p)
	if err != nil {
		return err
	}
	env, err := envelope.Seal(plaintext, c.keys)
	if err != nil {
		return err
	}
	encrypted, err := env.Encode()
	if err != nil {
		return err
	}
	body, err := json.Marshal(pushRequest{
		EncryptedString: encrypted,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: push: %v", errs.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: push: status %d", errs.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: push", errs.ErrRateLimited)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: push: status %d: %s", errs.ErrNetwork, resp.StatusCode, respBody)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.keys.PublicKeyHex())
}
