package services

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// DependencyManifest declares the expected content hashes of every tabulated
// data file a policy depends on.
type DependencyManifest struct {
	Version      string                       `yaml:"version"`
	Dependencies []models.DependencySignature `yaml:"dependencies"`
}

// PolicyGuard gates trust in tabulated policy and term data. Files whose
// content hash does not match the declared signature are refused outright:
// the engine fails initialization rather than computing on unverified data.
type PolicyGuard struct {
	logger *logrus.Logger
}

// NewPolicyGuard creates a guard.
func NewPolicyGuard(logger *logrus.Logger) *PolicyGuard {
	return &PolicyGuard{logger: logger}
}

// Verify compares the SHA3-256 of data against a declared signature and
// returns a typed StaleDependencyError on mismatch.
func (g *PolicyGuard) Verify(sig models.DependencySignature, data []byte) error {
	sum := sha3.Sum256(data)
	computed := hex.EncodeToString(sum[:])
	if !strings.EqualFold(computed, sig.SHA3) {
		return &models.StaleDependencyError{
			Name:     sig.Name,
			Declared: sig.SHA3,
			Computed: computed,
		}
	}
	return nil
}

// LoadManifest reads a YAML dependency manifest from disk.
func (g *PolicyGuard) LoadManifest(path string) (*DependencyManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingTableFile, path)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m DependencyManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.Dependencies) == 0 {
		return nil, fmt.Errorf("manifest %s declares no dependencies", path)
	}
	return &m, nil
}

// VerifyDir checks every dependency the manifest declares against the file of
// the same name under dir. The first mismatch aborts; there is no partial
// trust.
func (g *PolicyGuard) VerifyDir(manifest *DependencyManifest, dir string) error {
	for _, sig := range manifest.Dependencies {
		data, err := os.ReadFile(filepath.Join(dir, sig.Name))
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", models.ErrMissingTableFile, sig.Name)
			}
			return fmt.Errorf("reading %s: %w", sig.Name, err)
		}
		if err := g.Verify(sig, data); err != nil {
			return err
		}
		if g.logger != nil {
			g.logger.WithFields(logrus.Fields{
				"name":    sig.Name,
				"version": sig.Version,
			}).Debug("Dependency signature verified")
		}
	}
	return nil
}
