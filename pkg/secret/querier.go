package secret

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/scrtlabs/secret-ai-sdk-go/internal/enigma"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
	"go.uber.org/zap"
)

// ContractQuerier runs a read-only smart-contract query and decodes the
// contract's answer into out.
type ContractQuerier interface {
	QueryContract(ctx context.Context, contract string, query, out any) error
}

// LCDQuerier issues encrypted compute queries against a node's LCD REST API.
// Secret contracts only accept queries sealed for the chain's consensus IO
// key and prefixed with the contract's code hash:
//
//	GET {node}/registration/v1beta1/tx-key
//	GET {node}/compute/v1beta1/code_hash/by_contract_address/{contract}
//	GET {node}/compute/v1beta1/query/{contract}?query={base64(sealed query)}
//
// The IO key and code hashes are fetched once and cached. The answer in the
// "data" field is opened with the same per-query key.
type LCDQuerier struct {
	nodeURL string
	http    *transport.Client
	rand    io.Reader

	mu         sync.Mutex
	keys       *enigma.KeyPair
	ioKey      []byte
	codeHashes map[string]string
}

// NewLCDQuerier returns a querier for the node at nodeURL. Requests go
// through tc and are therefore retried.
func NewLCDQuerier(nodeURL string, tc *transport.Client) *LCDQuerier {
	return &LCDQuerier{
		nodeURL:    strings.TrimRight(nodeURL, "/"),
		http:       tc,
		rand:       rand.Reader,
		codeHashes: map[string]string{},
	}
}

// QueryContract implements ContractQuerier.
func (q *LCDQuerier) QueryContract(ctx context.Context, contract string, query, out any) error {
	msg, err := json.Marshal(query)
	if err != nil {
		return failure.InvalidInput(fmt.Sprintf("encode query: %v", err))
	}
	keys, err := q.keyPair()
	if err != nil {
		return err
	}
	ioKey, err := q.consensusKey(ctx)
	if err != nil {
		return err
	}
	codeHash, err := q.codeHash(ctx, contract)
	if err != nil {
		return err
	}

	wire, nonce, err := keys.Encrypt(q.rand, ioKey, codeHash, msg)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/compute/v1beta1/query/%s?query=%s",
		q.nodeURL, url.PathEscape(contract), url.QueryEscape(base64.StdEncoding.EncodeToString(wire)))

	var resp struct {
		Data string `json:"data"`
	}
	if err := q.http.JSON(ctx, queryName(query), http.MethodGet, u, nil, &resp); err != nil {
		return err
	}
	if resp.Data == "" {
		return failure.Response("contract query returned no data", nil)
	}
	answer, err := decryptAnswer(keys, ioKey, nonce, resp.Data)
	if err != nil {
		return failure.Response(err.Error(), resp.Data)
	}
	if err := json.Unmarshal(answer, out); err != nil {
		return failure.Response(fmt.Sprintf("decode contract answer: %v", err), string(answer))
	}
	return nil
}

// decryptAnswer opens data, which holds base64(AES-SIV(base64(answer))).
func decryptAnswer(keys *enigma.KeyPair, ioKey, nonce []byte, data string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	pt, err := keys.Decrypt(ioKey, nonce, ct)
	if err != nil {
		return nil, fmt.Errorf("decrypt answer: %w", err)
	}
	answer, err := base64.StdEncoding.DecodeString(string(pt))
	if err != nil {
		return nil, fmt.Errorf("decode decrypted answer: %w", err)
	}
	return answer, nil
}

func (q *LCDQuerier) keyPair() (*enigma.KeyPair, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.keys == nil {
		k, err := enigma.GenerateKeyPair(q.rand)
		if err != nil {
			return nil, err
		}
		q.keys = k
	}
	return q.keys, nil
}

func (q *LCDQuerier) consensusKey(ctx context.Context) ([]byte, error) {
	q.mu.Lock()
	key := q.ioKey
	q.mu.Unlock()
	if key != nil {
		return key, nil
	}

	var resp struct {
		Key string `json:"key"`
	}
	if err := q.http.JSON(ctx, "tx_key", http.MethodGet, q.nodeURL+"/registration/v1beta1/tx-key", nil, &resp); err != nil {
		return nil, fmt.Errorf("consensus io key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(resp.Key)
	if err != nil || len(key) != enigma.KeySize {
		return nil, failure.Response("consensus io key is not a 32-byte base64 value", resp.Key)
	}

	q.mu.Lock()
	q.ioKey = key
	q.mu.Unlock()
	zap.L().Debug("consensus io key fetched", zap.String("node", q.nodeURL))
	return key, nil
}

func (q *LCDQuerier) codeHash(ctx context.Context, contract string) (string, error) {
	q.mu.Lock()
	h, ok := q.codeHashes[contract]
	q.mu.Unlock()
	if ok {
		return h, nil
	}

	var resp struct {
		CodeHash string `json:"code_hash"`
	}
	u := fmt.Sprintf("%s/compute/v1beta1/code_hash/by_contract_address/%s", q.nodeURL, url.PathEscape(contract))
	if err := q.http.JSON(ctx, "code_hash", http.MethodGet, u, nil, &resp); err != nil {
		return "", fmt.Errorf("code hash of %s: %w", contract, err)
	}
	h = strings.ToLower(strings.TrimPrefix(resp.CodeHash, "0x"))
	if b, err := hex.DecodeString(h); err != nil || len(b) != 32 {
		return "", failure.Response("contract code hash is not a 32-byte hex value", resp.CodeHash)
	}

	q.mu.Lock()
	q.codeHashes[contract] = h
	q.mu.Unlock()
	return h, nil
}

// queryName returns the single top-level key of a query message, which names
// the contract entry point.
func queryName(query any) string {
	if m, ok := query.(map[string]any); ok && len(m) == 1 {
		for k := range m {
			return k
		}
	}
	return "contract_query"
}
