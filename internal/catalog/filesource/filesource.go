package filesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

type roleDoc struct {
	RoleID string   `json:"roleId"`
	Scopes []string `json:"scopes"`
}

func (d roleDoc) toRole() model.Role {
	return model.Role{RoleID: d.RoleID, Scopes: toScopeSet(d.Scopes)}
}

func roleToDoc(r model.Role) roleDoc {
	return roleDoc{RoleID: r.RoleID, Scopes: toStrings(r.Scopes)}
}

type clientDoc struct {
	ClientID     string    `json:"clientId"`
	AccessToken  string    `json:"accessToken"`
	Expires      time.Time `json:"expires"`
	Disabled     bool      `json:"disabled"`
	Scopes       []string  `json:"scopes"`
	LastDateUsed time.Time `json:"lastDateUsed"`
}

func (d clientDoc) toClient() model.Client {
	return model.Client{
		ClientID:         d.ClientID,
		AccessToken:      d.AccessToken,
		Expires:          d.Expires,
		Disabled:         d.Disabled,
		UnexpandedScopes: toScopeSet(d.Scopes),
		LastDateUsed:     d.LastDateUsed,
	}
}

func clientToDoc(c model.Client) clientDoc {
	return clientDoc{
		ClientID:     c.ClientID,
		AccessToken:  c.AccessToken,
		Expires:      c.Expires,
		Disabled:     c.Disabled,
		Scopes:       toStrings(c.UnexpandedScopes),
		LastDateUsed: c.LastDateUsed,
	}
}

func toScopeSet(strs []string) scope.ScopeSet {
	out := make(scope.ScopeSet, len(strs))
	for i, s := range strs {
		out[i] = scope.Scope(s)
	}
	return out
}

func toStrings(s scope.ScopeSet) []string {
	out := make([]string, len(s))
	for i, sc := range s {
		out[i] = string(sc)
	}
	return out
}

// RoleSource implements model.RoleSource against a JSON file holding an
// array of role documents: [{"roleId": "...", "scopes": ["..."]}].
type RoleSource struct {
	path string
	mu   sync.Mutex
}

// NewRoleSource returns a RoleSource reading and writing path. A missing
// file reads as an empty catalog rather than an error.
func NewRoleSource(path string) *RoleSource {
	return &RoleSource{path: path}
}

func (s *RoleSource) Scan(_ context.Context, handler func(model.Role) error) error {
	docs, err := s.readAll()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := handler(d.toRole()); err != nil {
			return err
		}
	}
	return nil
}

func (s *RoleSource) Load(_ context.Context, roleID string) (*model.Role, error) {
	docs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.RoleID == roleID {
			r := d.toRole()
			return &r, nil
		}
	}
	return nil, nil
}

// ApplyPatch applies a JSON Patch (RFC 6902) document to the raw JSON
// object for roleID and writes the whole file back, used by
// "reload-role --patch" to edit one role; the other entries are kept as
// they were.
func (s *RoleSource) ApplyPatch(_ context.Context, roleID string, patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return err
	}

	decoded, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return fmt.Errorf("filesource: decode patch: %w", err)
	}

	found := false
	for i, obj := range raw {
		var probe roleDoc
		if err := json.Unmarshal(obj, &probe); err != nil {
			return fmt.Errorf("filesource: decode role entry: %w", err)
		}
		if probe.RoleID != roleID {
			continue
		}
		patched, err := decoded.Apply(obj)
		if err != nil {
			return fmt.Errorf("filesource: apply patch to role %q: %w", roleID, err)
		}
		raw[i] = patched
		found = true
		break
	}
	if !found {
		return fmt.Errorf("filesource: role %q not found", roleID)
	}

	return writeRaw(s.path, raw)
}

func (s *RoleSource) readAll() ([]roleDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.readRawLocked()
	if err != nil {
		return nil, err
	}
	docs := make([]roleDoc, len(raw))
	for i, obj := range raw {
		if err := json.Unmarshal(obj, &docs[i]); err != nil {
			return nil, fmt.Errorf("filesource: decode role entry: %w", err)
		}
	}
	return docs, nil
}

func (s *RoleSource) readRaw() ([]json.RawMessage, error) {
	return s.readRawLocked()
}

func (s *RoleSource) readRawLocked() ([]json.RawMessage, error) {
	return readRawFile(s.path)
}

// ClientSource implements model.ClientSource against a JSON file holding an
// array of client documents.
type ClientSource struct {
	path string
	mu   sync.Mutex
}

// NewClientSource returns a ClientSource reading and writing path. A
// missing file reads as an empty client list rather than an error.
func NewClientSource(path string) *ClientSource {
	return &ClientSource{path: path}
}

func (s *ClientSource) Scan(_ context.Context, handler func(model.Client) error) error {
	docs, err := s.readAll()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := handler(d.toClient()); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClientSource) Load(_ context.Context, clientID string) (*model.Client, error) {
	docs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ClientID == clientID {
			c := d.toClient()
			return &c, nil
		}
	}
	return nil, nil
}

// Modify loads clientID, applies mutate, and rewrites the file. It is used
// by the catalog cache's best-effort asynchronous lastDateUsed update.
func (s *ClientSource) Modify(_ context.Context, clientID string, mutate func(*model.Client)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readAllLocked()
	if err != nil {
		return err
	}

	found := false
	for i, d := range docs {
		if d.ClientID != clientID {
			continue
		}
		cl := d.toClient()
		mutate(&cl)
		docs[i] = clientToDoc(cl)
		found = true
		break
	}
	if !found {
		return fmt.Errorf("filesource: client %q not found", clientID)
	}

	return writeDocs(s.path, docs)
}

// ApplyPatch applies a JSON Patch document to the raw JSON object for
// clientID and writes the result back, used by "reload-client --patch".
func (s *ClientSource) ApplyPatch(_ context.Context, clientID string, patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := readRawFile(s.path)
	if err != nil {
		return err
	}

	decoded, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return fmt.Errorf("filesource: decode patch: %w", err)
	}

	found := false
	for i, obj := range raw {
		var probe clientDoc
		if err := json.Unmarshal(obj, &probe); err != nil {
			return fmt.Errorf("filesource: decode client entry: %w", err)
		}
		if probe.ClientID != clientID {
			continue
		}
		patched, err := decoded.Apply(obj)
		if err != nil {
			return fmt.Errorf("filesource: apply patch to client %q: %w", clientID, err)
		}
		raw[i] = patched
		found = true
		break
	}
	if !found {
		return fmt.Errorf("filesource: client %q not found", clientID)
	}

	return writeRaw(s.path, raw)
}

func (s *ClientSource) readAll() ([]clientDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked()
}

func (s *ClientSource) readAllLocked() ([]clientDoc, error) {
	raw, err := readRawFile(s.path)
	if err != nil {
		return nil, err
	}
	docs := make([]clientDoc, len(raw))
	for i, obj := range raw {
		if err := json.Unmarshal(obj, &docs[i]); err != nil {
			return nil, fmt.Errorf("filesource: decode client entry: %w", err)
		}
	}
	return docs, nil
}

func writeDocs[T any](path string, docs []T) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("filesource: encode %s: %w", path, err)
	}
	return atomicWrite(path, data)
}

func writeRaw(path string, raw []json.RawMessage) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("filesource: encode %s: %w", path, err)
	}
	return atomicWrite(path, data)
}

func readRawFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filesource: read %s: %w", path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("filesource: decode %s: %w", path, err)
	}
	return raw, nil
}

// atomicWrite writes data to a temp file in the same directory as path and
// renames it into place, so a reader never observes a half-written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filesource: create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("filesource: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("filesource: close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("filesource: rename into %s: %w", path, err)
	}
	return nil
}
