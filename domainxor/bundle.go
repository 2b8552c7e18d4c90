package domainxor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
	"github.com/zeebo/xxh3"

	"github.com/starius/domainxor/domainhash"
	"github.com/starius/domainxor/psltrie"
)

// File names inside an artifact directory.
const (
	ExactXORFile        = "exactXOR.bin"
	WildcardXORFile     = "wildcardXOR.bin"
	PSLTrieFile         = "pslTrie.bin"
	ShadowWhitelistFile = "shadowWhitelist.bin"
	ManifestFile        = "manifest.json"
)

// HashScheme identifies the hash and fingerprint rules in manifests.
const HashScheme = "cyrb53a-u32x2"

// Manifest describes an artifact directory.
type Manifest struct {
	HashScheme      string     `json:"hash_scheme"`
	FingerprintBits int        `json:"fingerprint_bits"`
	TrieNodeWords   int        `json:"trie_node_words"`
	Files           []FileInfo `json:"files"`
}

// FileInfo is the size and xxh3 checksum of one artifact.
type FileInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	XXH3 string `json:"xxh3"`
}

func checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

func (a Artifacts) files() []struct {
	name string
	data []byte
} {
	return []struct {
		name string
		data []byte
	}{
		{ExactXORFile, a.ExactXOR},
		{WildcardXORFile, a.WildcardXOR},
		{PSLTrieFile, a.PSLTrie},
		{ShadowWhitelistFile, a.ShadowWhitelist},
	}
}

// NewManifest describes a.
func NewManifest(a Artifacts) Manifest {
	m := Manifest{
		HashScheme:      HashScheme,
		FingerprintBits: domainhash.FingerprintBits,
		TrieNodeWords:   psltrie.NodeWords,
	}
	for _, f := range a.files() {
		m.Files = append(m.Files, FileInfo{
			Name: f.name,
			Size: len(f.data),
			XXH3: checksum(f.data),
		})
	}
	return m
}

// WriteDir writes the artifacts and manifest.json into dir, creating it
// if needed. A nil whitelist is written as an empty file.
func WriteDir(dir string, a Artifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range a.files() {
		if f.data == nil && f.name != ShadowWhitelistFile {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, f.name)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	manifest, err := sonnet.Marshal(NewManifest(a))
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), manifest, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ManifestFile, err)
	}
	return nil
}

// LoadDir reads an artifact directory. The whitelist is optional. When
// manifest.json is present, the hash scheme and every checksum must match.
func LoadDir(dir string) (Artifacts, error) {
	var a Artifacts
	targets := map[string]*[]byte{
		ExactXORFile:        &a.ExactXOR,
		WildcardXORFile:     &a.WildcardXOR,
		PSLTrieFile:         &a.PSLTrie,
		ShadowWhitelistFile: &a.ShadowWhitelist,
	}
	for name, dst := range targets {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			if name == ShadowWhitelistFile {
				continue
			}
			return Artifacts{}, fmt.Errorf("%w: %s", ErrMissingArtifact, name)
		}
		if err != nil {
			return Artifacts{}, fmt.Errorf("read %s: %w", name, err)
		}
		if data == nil {
			data = []byte{}
		}
		*dst = data
	}

	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return Artifacts{}, fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	var m Manifest
	if err := sonnet.Unmarshal(raw, &m); err != nil {
		return Artifacts{}, fmt.Errorf("decode %s: %w", ManifestFile, err)
	}
	if err := m.Verify(a); err != nil {
		return Artifacts{}, err
	}
	return a, nil
}

// Verify checks a against the manifest.
func (m Manifest) Verify(a Artifacts) error {
	if m.HashScheme != HashScheme || m.FingerprintBits != domainhash.FingerprintBits || m.TrieNodeWords != psltrie.NodeWords {
		return fmt.Errorf("%w: scheme=%q fingerprint_bits=%d trie_node_words=%d",
			ErrManifest, m.HashScheme, m.FingerprintBits, m.TrieNodeWords)
	}
	want := make(map[string]FileInfo, len(m.Files))
	for _, f := range m.Files {
		want[f.Name] = f
	}
	for _, f := range a.files() {
		info, has := want[f.name]
		if !has {
			if f.name == ShadowWhitelistFile && len(f.data) == 0 {
				continue
			}
			return fmt.Errorf("%w: %s not listed", ErrManifest, f.name)
		}
		if info.Size != len(f.data) || info.XXH3 != checksum(f.data) {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, f.name)
		}
	}
	return nil
}

// Open loads dir and returns an engine over it.
func Open(dir string) (*Engine, error) {
	a, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return New(a)
}
