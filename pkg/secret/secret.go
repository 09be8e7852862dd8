// Package secret talks to the Secret Network worker-management contract,
// which records the models served by the network and the URLs of the
// confidential inference workers hosting them. It also derives account keys
// from BIP-39 mnemonics.
package secret

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/registry"
	"go.uber.org/zap"
)

// Client queries the worker-management contract. It implements
// registry.Registry.
type Client struct {
	cfg        config.Secret
	querier    ContractQuerier
	subscriber *ecdsa.PrivateKey
}

// Option configures a Client.
type Option func(*Client) error

// WithSubscriberKey signs every query with the hex-encoded secp256k1 key,
// as required by subscription-gated deployments of the contract.
func WithSubscriberKey(privHex string) Option {
	return func(c *Client) error {
		k, err := crypto.HexToECDSA(privHex)
		if err != nil {
			return failure.InvalidInput(fmt.Sprintf("subscriber key: %v", err))
		}
		c.subscriber = k
		return nil
	}
}

// New returns a Client for the chain and contract described by cfg. An empty
// chain ID, node URL or contract address is reported as
// failure.KindSecretValueMissing naming the matching environment variable.
func New(cfg config.Secret, q ContractQuerier, opts ...Option) (*Client, error) {
	switch {
	case cfg.ChainID == "":
		return nil, failure.SecretValueMissing(config.EnvChainID)
	case cfg.NodeURL == "":
		return nil, failure.SecretValueMissing(config.EnvNodeURL)
	case cfg.Contract == "":
		return nil, failure.SecretValueMissing(config.EnvContract)
	}
	if q == nil {
		return nil, failure.InvalidInput("nil contract querier")
	}
	c := &Client{cfg: cfg, querier: q}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ChainID returns the chain the client is bound to.
func (c *Client) ChainID() string { return c.cfg.ChainID }

// Contract returns the worker-management contract address.
func (c *Client) Contract() string { return c.cfg.Contract }

// Models implements registry.Registry with the get_models query.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var resp struct {
		Models *[]string `json:"models"`
	}
	if err := c.query(ctx, "get_models", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Models == nil {
		return nil, failure.Response("get_models: answer has no models field", resp)
	}
	zap.L().Debug("models from contract", zap.Int("count", len(*resp.Models)))
	return *resp.Models, nil
}

// URLs implements registry.Registry with the get_u_r_ls query. An empty
// model lists every registered worker.
func (c *Client) URLs(ctx context.Context, model string) ([]string, error) {
	var args map[string]any
	if model != "" {
		args = map[string]any{"model": model}
	}
	var resp struct {
		URLs *[]string `json:"urls"`
	}
	if err := c.query(ctx, "get_u_r_ls", args, &resp); err != nil {
		return nil, err
	}
	if resp.URLs == nil {
		return nil, failure.Response("get_u_r_ls: answer has no urls field", resp)
	}
	zap.L().Debug("urls from contract", zap.String("model", model), zap.Int("count", len(*resp.URLs)))
	return *resp.URLs, nil
}

func (c *Client) query(ctx context.Context, name string, args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	if c.subscriber != nil {
		pub, sig, err := signSubscriber(c.subscriber)
		if err != nil {
			return err
		}
		args["subscriber_public_key"] = pub
		args["signature"] = sig
	}
	q := map[string]any{name: args}
	if err := c.querier.QueryContract(ctx, c.cfg.Contract, q, out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// signSubscriber proves ownership of the subscriber key: it signs the
// SHA-256 of the compressed public key and returns both hex-encoded, the
// signature in 64-byte compact form.
func signSubscriber(k *ecdsa.PrivateKey) (pubHex, sigHex string, err error) {
	pub := crypto.CompressPubkey(&k.PublicKey)
	digest := sha256.Sum256(pub)
	sig, err := crypto.Sign(digest[:], k)
	if err != nil {
		return "", "", fmt.Errorf("sign subscriber key: %w", err)
	}
	return hex.EncodeToString(pub), hex.EncodeToString(sig[:64]), nil
}

var _ registry.Registry = (*Client)(nil)
