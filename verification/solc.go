package verification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// versionPattern extracts the plain semver triple out of version strings like "v0.8.20+commit.a1b79de6".
var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// releaseList is the shape of the official static-build list.json.
type releaseList struct {
	// Releases maps plain versions to release file names.
	Releases map[string]string `json:"releases"`
}

// solcResolver downloads official solc static builds on demand and memoizes them on disk. A binary downloaded once
// is reused for the life of the directory.
type solcResolver struct {
	directory      string
	releaseListURL string
	httpClient     *http.Client
	logger         *logging.Logger

	lock     sync.Mutex
	releases map[string]string
	binaries map[string]string
}

// newSolcResolver returns a resolver that keeps compiler binaries under the given directory.
func newSolcResolver(directory string, releaseListURL string, logger *logging.Logger) *solcResolver {
	return &solcResolver{
		directory:      directory,
		releaseListURL: releaseListURL,
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
		logger:         logger,
		binaries:       make(map[string]string),
	}
}

// normalizeVersion reduces a user-supplied compiler version to its plain semver triple.
func normalizeVersion(version string) (string, error) {
	match := versionPattern.FindString(version)
	if match == "" {
		return "", errors.Errorf("could not parse compiler version '%s'", version)
	}
	return match, nil
}

// ensureCompiler resolves a compiler version to a local binary path, downloading it if this is the first use.
func (r *solcResolver) ensureCompiler(ctx context.Context, version string) (string, error) {
	normalized, err := normalizeVersion(version)
	if err != nil {
		return "", newError(ErrorCompilerUnavailable, "%s", err.Error())
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if binaryPath, ok := r.binaries[normalized]; ok {
		return binaryPath, nil
	}

	// A binary left by an earlier process is reused without consulting the release list
	binaryPath := filepath.Join(r.directory, "solc-"+normalized)
	if utils.FileExists(binaryPath) {
		r.binaries[normalized] = binaryPath
		return binaryPath, nil
	}

	if err = r.loadReleaseList(ctx); err != nil {
		return "", newError(ErrorCompilerUnavailable, "could not fetch the solc release list: %s", err.Error())
	}
	releaseFile, ok := r.releases[normalized]
	if !ok {
		return "", newError(ErrorCompilerUnavailable, "compiler version '%s' is not in the official release list", normalized)
	}

	downloadURL := strings.TrimSuffix(r.releaseListURL, "/list.json") + "/" + releaseFile
	r.logger.Info("Downloading solc", logging.StructuredLogInfo{"version": normalized, "url": downloadURL})
	if err = r.download(ctx, downloadURL, binaryPath); err != nil {
		return "", newError(ErrorCompilerUnavailable, "could not download compiler '%s': %s", normalized, err.Error())
	}

	r.binaries[normalized] = binaryPath
	return binaryPath, nil
}

// loadReleaseList fetches and caches the official release list.
func (r *solcResolver) loadReleaseList(ctx context.Context) error {
	if r.releases != nil {
		return nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, r.releaseListURL, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	response, err := r.httpClient.Do(request)
	if err != nil {
		return errors.WithStack(err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return errors.Errorf("release list host returned status %d", response.StatusCode)
	}

	var list releaseList
	if err = json.NewDecoder(response.Body).Decode(&list); err != nil {
		return errors.WithStack(err)
	}
	r.releases = list.Releases
	return nil
}

// download fetches one release binary to the given path and marks it executable.
func (r *solcResolver) download(ctx context.Context, url string, destination string) error {
	if err := utils.MakeDirectory(filepath.Dir(destination)); err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	response, err := r.httpClient.Do(request)
	if err != nil {
		return errors.WithStack(err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return errors.Errorf("release host returned status %d", response.StatusCode)
	}

	// Write to a temp name first so a partial download never masquerades as a usable compiler
	file, err := os.CreateTemp(filepath.Dir(destination), ".solc-download-*")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(file, response.Body)
	closeErr := file.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(file.Name())
		return errors.Errorf("could not write compiler binary: %v / %v", err, closeErr)
	}
	if err = os.Chmod(file.Name(), 0755); err != nil {
		_ = os.Remove(file.Name())
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(file.Name(), destination))
}

// evmVersionOrder lists EVM versions from oldest to newest, used to clamp requested versions to what a compiler
// supports.
var evmVersionOrder = []string{
	"homestead", "tangerineWhistle", "spuriousDragon", "byzantium", "constantinople", "petersburg",
	"istanbul", "berlin", "london", "paris", "shanghai", "cancun",
}

// maxSupportedEVMVersion returns the newest EVM version a compiler release can target.
func maxSupportedEVMVersion(compilerVersion *semver.Version) string {
	switch {
	case compilerVersion.Major() == 0 && compilerVersion.Minor() < 6:
		return "byzantium"
	case compilerVersion.Major() == 0 && compilerVersion.Minor() < 8:
		return "istanbul"
	case compilerVersion.Major() == 0 && compilerVersion.Minor() == 8 && compilerVersion.Patch() <= 4:
		return "istanbul"
	case compilerVersion.Major() == 0 && compilerVersion.Minor() == 8 && compilerVersion.Patch() <= 17:
		return "london"
	case compilerVersion.Major() == 0 && compilerVersion.Minor() == 8 && compilerVersion.Patch() <= 19:
		return "paris"
	case compilerVersion.Major() == 0 && compilerVersion.Minor() == 8 && compilerVersion.Patch() <= 23:
		return "shanghai"
	default:
		return "cancun"
	}
}

// coerceEVMVersion maps the requested EVM version to one the given compiler release supports. An empty request or
// "default" yields the compiler's newest supported version; requests newer than supported are clamped down, older
// requests are honored as-is.
func coerceEVMVersion(compilerVersion string, requested string) (string, error) {
	normalized, err := normalizeVersion(compilerVersion)
	if err != nil {
		return "", err
	}
	parsed, err := semver.NewVersion(normalized)
	if err != nil {
		return "", errors.WithStack(err)
	}

	supported := maxSupportedEVMVersion(parsed)
	if requested == "" || strings.EqualFold(requested, "default") {
		return supported, nil
	}

	requestedRank, supportedRank := -1, -1
	for i, version := range evmVersionOrder {
		if strings.EqualFold(version, requested) {
			requestedRank = i
		}
		if version == supported {
			supportedRank = i
		}
	}
	if requestedRank == -1 {
		return "", errors.Errorf("unknown evm version '%s'", requested)
	}
	if requestedRank > supportedRank {
		return supported, nil
	}
	return evmVersionOrder[requestedRank], nil
}
