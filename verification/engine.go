package verification

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// Request is one contract verification submission. Sources holds one entry for a single-file submission or the full
// file map for a multi-file one.
type Request struct {
	Address              string            `json:"address"`
	Sources              map[string]string `json:"sources"`
	ContractName         string            `json:"contractName"`
	CompilerVersion      string            `json:"compilerVersion"`
	OptimizationUsed     bool              `json:"optimizationUsed"`
	Runs                 int               `json:"runs"`
	EVMVersion           string            `json:"evmVersion"`
	Libraries            map[string]string `json:"libraries"`
	ConstructorArguments string            `json:"constructorArguments"`
	AutoFlatten          bool              `json:"autoFlatten"`
}

// Result is the outcome of one verification submission. Negative outcomes carry the diagnostic in Message; they are
// results, not engine errors.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ABI      string `json:"abi,omitempty"`
	Bytecode string `json:"bytecode,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	MainFile string `json:"mainFile,omitempty"`
}

// ContractStore is the slice of the persistence layer the engine reads and writes.
type ContractStore interface {
	GetContract(ctx context.Context, address string) (*store.Contract, error)
	SetVerified(ctx context.Context, address string, verification *store.Verification) error
}

// CodeReader fetches deployed bytecode from the chain.
type CodeReader interface {
	GetCode(ctx context.Context, address common.Address) ([]byte, error)
}

// Engine proves that submitted source compiles to a contract's deployed bytecode. Compilations run on a bounded
// worker pool to cap memory use; submissions beyond the pool depth are rejected with ErrBusy.
type Engine struct {
	cfg           config.VerificationConfig
	contractStore ContractStore
	codeReader    CodeReader
	solc          *solcResolver
	cache         *cache
	logger        *logging.Logger

	// slots is the compilation admission semaphore.
	slots chan struct{}
}

// NewEngine opens the verification cache and returns an engine ready to accept submissions.
func NewEngine(cfg config.VerificationConfig, contractStore ContractStore, codeReader CodeReader, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	logger = logger.NewSubLogger("module", "verification")

	engineCache, err := openCache(cfg.CachePath)
	if err != nil {
		return nil, err
	}

	poolSize := cfg.WorkerPool
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Engine{
		cfg:           cfg,
		contractStore: contractStore,
		codeReader:    codeReader,
		solc:          newSolcResolver(cfg.SolcDirectory, cfg.ReleaseListURL, logger),
		cache:         engineCache,
		logger:        logger,
		slots:         make(chan struct{}, poolSize),
	}, nil
}

// Close releases the verification cache.
func (e *Engine) Close() error {
	return e.cache.close()
}

// Verify runs the full verification pipeline for one submission. It returns ErrBusy when the worker pool is
// saturated and store.ErrNotFound when the address is not an indexed contract; verification-negative outcomes are
// returned as a Result with Success=false and a nil error.
func (e *Engine) Verify(ctx context.Context, request *Request) (*Result, error) {
	select {
	case e.slots <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-e.slots }()

	jobID := uuid.New()
	logger := e.logger.NewSubLogger("job", jobID.String())
	logger.Info("Verification started", logging.StructuredLogInfo{
		"address": request.Address, "compiler": request.CompilerVersion, "files": len(request.Sources)})

	if diagnostic := e.validate(request); diagnostic != nil {
		return failure(diagnostic), nil
	}

	key := requestKey(request)
	if cached := e.cache.get(key); cached != nil {
		logger.Info("Verification served from cache")
		return cached, nil
	}

	normalizedAddress := utils.NormalizeAddress(request.Address)
	contract, err := e.contractStore.GetContract(ctx, normalizedAddress)
	if err != nil {
		return nil, err
	}
	if contract.Verified {
		return nil, store.ErrAlreadyVerified
	}

	address, _ := utils.HexStringToAddress(request.Address)
	onChainCode, err := e.codeReader.GetCode(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(onChainCode) == 0 {
		return failure(newError(ErrorInvalidArguments, "no bytecode is deployed at %s", request.Address)), nil
	}

	solcPath, err := e.solc.ensureCompiler(ctx, request.CompilerVersion)
	if err != nil {
		if diagnostic, ok := errorAsDiagnostic(err); ok {
			return failure(diagnostic), nil
		}
		return nil, err
	}
	evmVersion, err := coerceEVMVersion(request.CompilerVersion, request.EVMVersion)
	if err != nil {
		return failure(newError(ErrorInvalidArguments, "%s", err.Error())), nil
	}

	output, compileErr := e.compile(ctx, solcPath, request.Sources, request, evmVersion)
	if compileErr != nil && request.AutoFlatten && len(request.Sources) > 1 {
		// A multi-file compile that fails on import resolution often succeeds as one synthetic file
		mainFile := mainFileFor(request)
		flattened, flattenErr := flatten(request.Sources, mainFile)
		if flattenErr == nil {
			logger.Info("Retrying verification with flattened source", logging.StructuredLogInfo{"mainFile": mainFile})
			output, compileErr = e.compile(ctx, solcPath, map[string]string{mainFile: flattened}, request, evmVersion)
		}
	}
	if compileErr != nil {
		if diagnostic, ok := errorAsDiagnostic(compileErr); ok {
			return failure(diagnostic), nil
		}
		return nil, compileErr
	}

	artifact, mainFile, diagnostic := findContract(output, request.ContractName)
	if diagnostic != nil {
		return failure(diagnostic), nil
	}

	compiledCode, err := hex.DecodeString(strings.TrimPrefix(artifact.EVM.DeployedBytecode.Object, "0x"))
	if err != nil {
		return failure(newError(ErrorCompileError, "compiler produced unparseable bytecode")), nil
	}
	constructorArguments := common.FromHex("0x" + utils.NormalizeHex(request.ConstructorArguments))

	match, subCode := compareBytecode(onChainCode, compiledCode, constructorArguments)
	if !match {
		logger.Info("Verification failed", logging.StructuredLogInfo{"address": request.Address, "subCode": subCode})
		return failure(newError(ErrorBytecodeMismatch, "compiled bytecode does not match deployed bytecode (%s)", subCode)), nil
	}

	abiJSON, err := json.Marshal(artifact.ABI)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	librariesJSON, _ := json.Marshal(request.Libraries)
	err = e.contractStore.SetVerified(ctx, normalizedAddress, &store.Verification{
		SourceCode:           combinedSource(request.Sources),
		CompilerVersion:      request.CompilerVersion,
		OptimizationUsed:     request.OptimizationUsed,
		Runs:                 request.Runs,
		EVMVersion:           evmVersion,
		ConstructorArguments: utils.NormalizeHex(request.ConstructorArguments),
		Libraries:            string(librariesJSON),
		ABI:                  string(abiJSON),
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success:  true,
		Message:  "verified",
		ABI:      string(abiJSON),
		Bytecode: artifact.EVM.DeployedBytecode.Object,
		Metadata: artifact.Metadata,
		MainFile: mainFile,
	}
	if err = e.cache.put(key, result); err != nil {
		logger.Warn("Could not cache verification artifact", err)
	}
	logger.Info("Verification succeeded", logging.StructuredLogInfo{"address": request.Address})
	return result, nil
}

// validate applies the input checks that need no I/O.
func (e *Engine) validate(request *Request) *Error {
	if len(request.Sources) == 0 {
		return newError(ErrorInvalidArguments, "at least one source file is required")
	}
	totalBytes := 0
	for _, content := range request.Sources {
		totalBytes += len(content)
	}
	if totalBytes > e.cfg.MaxSourceBytes {
		return newError(ErrorInvalidArguments, "submitted source exceeds the %d byte limit", e.cfg.MaxSourceBytes)
	}
	if request.ConstructorArguments != "" {
		normalized := utils.NormalizeHex(request.ConstructorArguments)
		if !utils.IsHexString(normalized) || len(normalized)%2 != 0 {
			return newError(ErrorInvalidArguments, "constructor arguments must be a hex string")
		}
	}
	if _, err := utils.HexStringToAddress(request.Address); err != nil {
		return newError(ErrorInvalidArguments, "invalid contract address '%s'", request.Address)
	}
	return nil
}

// solcOutput is the subset of the standard-JSON compiler output the engine consumes.
type solcOutput struct {
	Errors []struct {
		Severity         string `json:"severity"`
		FormattedMessage string `json:"formattedMessage"`
	} `json:"errors"`
	Contracts map[string]map[string]solcArtifact `json:"contracts"`
}

// solcArtifact is one compiled contract within the standard-JSON output.
type solcArtifact struct {
	ABI      any    `json:"abi"`
	Metadata string `json:"metadata"`
	EVM      struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
		DeployedBytecode struct {
			Object string `json:"object"`
		} `json:"deployedBytecode"`
	} `json:"evm"`
}

// compile runs one standard-JSON compilation. Import paths are resolved against the source map first, so multi-file
// submissions compile without requiring their imports to match the map keys verbatim.
func (e *Engine) compile(ctx context.Context, solcPath string, sources map[string]string, request *Request, evmVersion string) (*solcOutput, error) {
	input := buildStandardJSON(resolveImports(sources), request, evmVersion)
	encodedInput, err := json.Marshal(input)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	command := exec.CommandContext(ctx, solcPath, "--standard-json")
	command.Stdin = bytes.NewReader(encodedInput)
	rawOutput, err := command.Output()
	if err != nil {
		return nil, newError(ErrorCompileError, "could not execute compiler: %s", err.Error())
	}

	var output solcOutput
	if err = json.Unmarshal(rawOutput, &output); err != nil {
		return nil, newError(ErrorCompileError, "could not parse compiler output: %s", err.Error())
	}
	for _, diagnostic := range output.Errors {
		if diagnostic.Severity == "error" {
			return nil, newError(ErrorCompileError, "%s", diagnostic.FormattedMessage)
		}
	}
	return &output, nil
}

// buildStandardJSON assembles the standard-JSON compiler input for one compilation.
func buildStandardJSON(sources map[string]string, request *Request, evmVersion string) map[string]any {
	sourceEntries := make(map[string]any, len(sources))
	for path, content := range sources {
		sourceEntries[path] = map[string]string{"content": content}
	}

	settings := map[string]any{
		"optimizer": map[string]any{
			"enabled": request.OptimizationUsed,
			"runs":    request.Runs,
		},
		"evmVersion": evmVersion,
		"outputSelection": map[string]any{
			"*": map[string]any{
				"*": []string{"abi", "evm.bytecode.object", "evm.deployedBytecode.object", "metadata"},
			},
		},
	}
	if len(request.Libraries) > 0 {
		// Library names may be qualified as "file.sol:Name"; unqualified names apply to every source file
		libraries := map[string]map[string]string{}
		for name, address := range request.Libraries {
			if file, bare, found := strings.Cut(name, ":"); found {
				if libraries[file] == nil {
					libraries[file] = map[string]string{}
				}
				libraries[file][bare] = address
			} else {
				for path := range sources {
					if libraries[path] == nil {
						libraries[path] = map[string]string{}
					}
					libraries[path][name] = address
				}
			}
		}
		settings["libraries"] = libraries
	}

	return map[string]any{
		"language": "Solidity",
		"sources":  sourceEntries,
		"settings": settings,
	}
}

// findContract locates the requested contract in the compiler output. An empty requested name is accepted when the
// output contains exactly one contract.
func findContract(output *solcOutput, contractName string) (*solcArtifact, string, *Error) {
	type located struct {
		artifact solcArtifact
		file     string
		name     string
	}
	candidates := make([]located, 0)
	files := make([]string, 0, len(output.Contracts))
	for file := range output.Contracts {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		names := make([]string, 0, len(output.Contracts[file]))
		for name := range output.Contracts[file] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if contractName == "" || name == contractName {
				candidates = append(candidates, located{artifact: output.Contracts[file][name], file: file, name: name})
			}
		}
	}

	if len(candidates) == 0 {
		return nil, "", newError(ErrorContractNotFound, "contract '%s' was not found in the compiler output", contractName)
	}
	if contractName == "" && len(candidates) > 1 {
		return nil, "", newError(ErrorContractNotFound, "the submission compiles multiple contracts, contractName is required")
	}
	// Prefer a candidate with deployed bytecode; interfaces and abstract contracts compile to none
	for _, candidate := range candidates {
		if candidate.artifact.EVM.DeployedBytecode.Object != "" {
			return &candidate.artifact, candidate.file, nil
		}
	}
	return nil, "", newError(ErrorContractNotFound, "contract '%s' has no deployed bytecode", contractName)
}

// contractDeclarationPattern finds a contract declaration for main-file detection during flattening.
var contractDeclarationPattern = regexp.MustCompile(`(?m)^\s*(?:abstract\s+)?contract\s+(\w+)`)

// mainFileFor picks the flattening entry point: the file declaring the requested contract, falling back to the first
// file in sorted order.
func mainFileFor(request *Request) string {
	paths := make([]string, 0, len(request.Sources))
	for path := range request.Sources {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if request.ContractName != "" {
		for _, path := range paths {
			for _, match := range contractDeclarationPattern.FindAllStringSubmatch(request.Sources[path], -1) {
				if match[1] == request.ContractName {
					return path
				}
			}
		}
	}
	return paths[0]
}

// combinedSource serializes the submitted sources for storage: single files verbatim, file maps as JSON.
func combinedSource(sources map[string]string) string {
	if len(sources) == 1 {
		for _, content := range sources {
			return content
		}
	}
	encoded, _ := json.Marshal(sources)
	return string(encoded)
}

// failure wraps a structured diagnostic as a verification-negative result.
func failure(diagnostic *Error) *Result {
	return &Result{Success: false, Message: diagnostic.Error()}
}

// errorAsDiagnostic extracts a structured diagnostic from an error chain.
func errorAsDiagnostic(err error) (*Error, bool) {
	var diagnostic *Error
	if errors.As(err, &diagnostic) {
		return diagnostic, true
	}
	return nil, false
}
