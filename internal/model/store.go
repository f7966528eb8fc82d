package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
)

const (
	productionModelFile  = "model.json"
	productionScalerFile = "scaler.json"
	productionVersionTag = "version"
	versionsDirName      = "versions"
)

// NewVersionToken returns a fresh version identifier. Tokens sort
// chronologically as strings.
func NewVersionToken(now time.Time) string {
	return now.UTC().Format("20060102_150405")
}

// ArtifactStore keeps the production (model, scaler) pair plus every
// versioned artifact under one directory:
//
//	<dir>/model.json, scaler.json, version
//	<dir>/versions/model_<v>.json, scaler_<v>.json, metadata_<v>.json
type ArtifactStore struct {
	dir string
	log *logger.Logger
}

func NewArtifactStore(dir string, baseLog *logger.Logger) *ArtifactStore {
	return &ArtifactStore{dir: dir, log: baseLog.With("service", "ArtifactStore")}
}

func (s *ArtifactStore) Dir() string { return s.dir }

func (s *ArtifactStore) versionsDir() string { return filepath.Join(s.dir, versionsDirName) }

func (s *ArtifactStore) versionModelPath(version string) string {
	return filepath.Join(s.versionsDir(), fmt.Sprintf("model_%s.json", version))
}

func (s *ArtifactStore) versionScalerPath(version string) string {
	return filepath.Join(s.versionsDir(), fmt.Sprintf("scaler_%s.json", version))
}

func (s *ArtifactStore) versionMetadataPath(version string) string {
	return filepath.Join(s.versionsDir(), fmt.Sprintf("metadata_%s.json", version))
}

// LoadProduction reads the active pair and its version token.
func (s *ArtifactStore) LoadProduction() (*Regressor, *StandardScaler, string, error) {
	modelPath := filepath.Join(s.dir, productionModelFile)
	m := &Regressor{}
	if err := readJSON(modelPath, m); err != nil {
		return nil, nil, "", &ModelLoadError{Path: modelPath, Err: err}
	}
	scalerPath := filepath.Join(s.dir, productionScalerFile)
	sc := &StandardScaler{}
	if err := readJSON(scalerPath, sc); err != nil {
		return nil, nil, "", &ModelLoadError{Path: scalerPath, Err: err}
	}
	version, err := s.ProductionVersion()
	if err != nil {
		return nil, nil, "", err
	}
	return m, sc, version, nil
}

// ProductionVersion reads the active version token ("" when unset).
func (s *ArtifactStore) ProductionVersion() (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, productionVersionTag))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// SaveProduction replaces the active pair. Files are written to a temp name
// then renamed so a crash mid-write never leaves a half-written artifact.
func (s *ArtifactStore) SaveProduction(m *Regressor, sc *StandardScaler, version string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, productionModelFile), m); err != nil {
		return fmt.Errorf("save production model: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, productionScalerFile), sc); err != nil {
		return fmt.Errorf("save production scaler: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, productionVersionTag), []byte(version+"\n")); err != nil {
		return fmt.Errorf("save production version: %w", err)
	}
	return nil
}

// SaveVersion persists one versioned artifact pair.
func (s *ArtifactStore) SaveVersion(version string, m *Regressor, sc *StandardScaler) error {
	if err := os.MkdirAll(s.versionsDir(), 0o755); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.versionModelPath(version), m); err != nil {
		return fmt.Errorf("save version model: %w", err)
	}
	if err := writeJSONAtomic(s.versionScalerPath(version), sc); err != nil {
		return fmt.Errorf("save version scaler: %w", err)
	}
	return nil
}

// LoadVersion reads one versioned artifact pair.
func (s *ArtifactStore) LoadVersion(version string) (*Regressor, *StandardScaler, error) {
	m := &Regressor{}
	if err := readJSON(s.versionModelPath(version), m); err != nil {
		return nil, nil, &ModelLoadError{Path: s.versionModelPath(version), Err: err}
	}
	sc := &StandardScaler{}
	if err := readJSON(s.versionScalerPath(version), sc); err != nil {
		return nil, nil, &ModelLoadError{Path: s.versionScalerPath(version), Err: err}
	}
	return m, sc, nil
}

// HasVersion reports whether an artifact pair exists for version.
func (s *ArtifactStore) HasVersion(version string) bool {
	if version == "" {
		return false
	}
	if _, err := os.Stat(s.versionModelPath(version)); err != nil {
		return false
	}
	_, err := os.Stat(s.versionScalerPath(version))
	return err == nil
}

// BackupProduction copies the active pair into the versions directory under
// its own version token and returns that token.
func (s *ArtifactStore) BackupProduction() (string, error) {
	m, sc, version, err := s.LoadProduction()
	if err != nil {
		return "", err
	}
	if version == "" {
		version = NewVersionToken(time.Now())
	}
	if err := s.SaveVersion(version, m, sc); err != nil {
		return "", err
	}
	s.log.Info("Backed up production artifact", "version", version)
	return version, nil
}

// RestoreVersion promotes a stored version back to production.
func (s *ArtifactStore) RestoreVersion(version string) error {
	m, sc, err := s.LoadVersion(version)
	if err != nil {
		return err
	}
	if err := s.SaveProduction(m, sc, version); err != nil {
		return err
	}
	s.log.Info("Restored artifact to production", "version", version)
	return nil
}

// DiscardVersion removes a rejected candidate's files. Metadata is kept.
func (s *ArtifactStore) DiscardVersion(version string) error {
	if version == "" {
		return nil
	}
	for _, p := range []string{s.versionModelPath(version), s.versionScalerPath(version)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// LatestVersion returns the newest stored version token, "" when none.
func (s *ArtifactStore) LatestVersion() (string, error) {
	entries, err := os.ReadDir(s.versionsDir())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var versions []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "model_") && strings.HasSuffix(name, ".json") {
			versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, "model_"), ".json"))
		}
	}
	if len(versions) == 0 {
		return "", nil
	}
	sort.Strings(versions)
	return versions[len(versions)-1], nil
}

// WriteVersionMetadata stores the per-version evaluation record next to the
// artifact files.
func (s *ArtifactStore) WriteVersionMetadata(version string, meta any) error {
	if err := os.MkdirAll(s.versionsDir(), 0o755); err != nil {
		return err
	}
	return writeJSONAtomic(s.versionMetadataPath(version), meta)
}

// ReadVersionMetadata loads the evaluation record written for a version.
func (s *ArtifactStore) ReadVersionMetadata(version string, out any) error {
	return readJSON(s.versionMetadataPath(version), out)
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func writeJSONAtomic(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, raw)
}

func writeFileAtomic(path string, raw []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
