// Package secretnode serves the parts of a Secret Network LCD API that the
// SDK's contract querier uses, with real query encryption. Tests use it in
// place of a chain node.
package secretnode

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/scrtlabs/secret-ai-sdk-go/internal/enigma"
)

// CodeHash is the code hash every contract of the node reports.
const CodeHash = "8c0aa2e2e8a8b0d8e8cda33e3b5a7a1b4e1b4dc8d8a2a7e6a2a1e0d4b4c5f2a9"

// AnswerFunc answers one decrypted query. name is the entry point and args
// its arguments. A status other than 200 is sent as a plain error reply.
type AnswerFunc func(name string, args map[string]any) (answer any, status int)

// Node is a running fake node.
type Node struct {
	*httptest.Server

	io     *enigma.KeyPair
	answer AnswerFunc

	mu      sync.Mutex
	queries []map[string]any
	counts  map[string]int
}

// New starts a node serving contract; it is closed with t.
func New(t testing.TB, contract string, answer AnswerFunc) *Node {
	t.Helper()
	io, err := enigma.GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("node key: %v", err)
	}
	n := &Node{io: io, answer: answer, counts: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /registration/v1beta1/tx-key", func(w http.ResponseWriter, r *http.Request) {
		n.count("tx_key")
		writeJSON(w, http.StatusOK, map[string]string{"key": base64.StdEncoding.EncodeToString(io.Public)})
	})
	mux.HandleFunc("GET /compute/v1beta1/code_hash/by_contract_address/{addr}", func(w http.ResponseWriter, r *http.Request) {
		n.count("code_hash")
		if r.PathValue("addr") != contract {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": 5, "message": "contract not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"code_hash": CodeHash})
	})
	mux.HandleFunc("GET /compute/v1beta1/query/{addr}", func(w http.ResponseWriter, r *http.Request) {
		n.count("query")
		if r.PathValue("addr") != contract {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": 5, "message": "contract not found"})
			return
		}
		n.serveQuery(w, r)
	})

	n.Server = httptest.NewServer(mux)
	t.Cleanup(n.Close)
	return n
}

func (n *Node) serveQuery(w http.ResponseWriter, r *http.Request) {
	wire, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("query"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "query is not base64"})
		return
	}
	m, err := enigma.OpenMessage(n.io.Private, wire)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "query could not be decrypted"})
		return
	}
	body, ok := strings.CutPrefix(string(m.Plaintext), CodeHash)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "code hash mismatch"})
		return
	}
	var q map[string]map[string]any
	if err := json.Unmarshal([]byte(body), &q); err != nil || len(q) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "malformed query"})
		return
	}

	var (
		name string
		args map[string]any
	)
	for k, v := range q {
		name, args = k, v
	}
	n.mu.Lock()
	n.queries = append(n.queries, map[string]any{name: args})
	n.mu.Unlock()

	answer, status := n.answer(name, args)
	if status != http.StatusOK {
		writeJSON(w, status, map[string]any{"code": 2, "message": http.StatusText(status)})
		return
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 13, "message": err.Error()})
		return
	}
	ct, err := enigma.Seal(m.Key, []byte(base64.StdEncoding.EncodeToString(raw)))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 13, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": base64.StdEncoding.EncodeToString(ct)})
}

// Queries returns the decrypted queries received so far, keyed by entry
// point.
func (n *Node) Queries() []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]map[string]any(nil), n.queries...)
}

// Count returns how often the endpoint was hit: tx_key, code_hash or query.
func (n *Node) Count(endpoint string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[endpoint]
}

func (n *Node) count(endpoint string) {
	n.mu.Lock()
	n.counts[endpoint]++
	n.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
