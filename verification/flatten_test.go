package verification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceResolver(t *testing.T) {
	resolver := newSourceResolver(map[string]string{
		"contracts/Token.sol": "",
		"lib/SafeMath.sol":    "",
		"Ownable.sol":         "",
	})

	// Exact match
	resolved, ok := resolver.resolve("contracts/Token.sol")
	assert.True(t, ok)
	assert.Equal(t, "contracts/Token.sol", resolved)

	// Relative prefixes stripped
	resolved, ok = resolver.resolve("./Ownable.sol")
	assert.True(t, ok)
	assert.Equal(t, "Ownable.sol", resolved)
	resolved, ok = resolver.resolve("../../Ownable.sol")
	assert.True(t, ok)
	assert.Equal(t, "Ownable.sol", resolved)

	// .sol extension appended
	resolved, ok = resolver.resolve("Ownable")
	assert.True(t, ok)
	assert.Equal(t, "Ownable.sol", resolved)

	// Basename fallback
	resolved, ok = resolver.resolve("@openzeppelin/contracts/math/SafeMath.sol")
	assert.True(t, ok)
	assert.Equal(t, "lib/SafeMath.sol", resolved)

	_, ok = resolver.resolve("Missing.sol")
	assert.False(t, ok)
}

func TestResolveImportsRewritesToSourceKeys(t *testing.T) {
	files := map[string]string{
		"Token.sol":        "pragma solidity ^0.8.20;\nimport \"@openzeppelin/contracts/math/SafeMath.sol\";\nimport './Ownable.sol';\ncontract Token {}",
		"lib/SafeMath.sol": "pragma solidity ^0.8.20;\nlibrary SafeMath {}",
		"Ownable.sol":      "pragma solidity ^0.8.20;\ncontract Ownable {}",
	}

	resolved := resolveImports(files)
	assert.Contains(t, resolved["Token.sol"], `import "lib/SafeMath.sol";`)
	assert.Contains(t, resolved["Token.sol"], `import 'Ownable.sol';`)

	// Unresolvable imports pass through untouched for the compiler to report
	files = map[string]string{
		"Main.sol": "pragma solidity ^0.8.20;\nimport \"./Missing.sol\";\ncontract Main {}",
	}
	resolved = resolveImports(files)
	assert.Contains(t, resolved["Main.sol"], `import "./Missing.sol";`)
}

func TestFlattenInlinesImports(t *testing.T) {
	files := map[string]string{
		"Token.sol": "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.20;\nimport \"./Base.sol\";\ncontract Token is Base {}",
		"Base.sol":  "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.20;\nimport {Lib} from \"./Lib.sol\";\ncontract Base {}",
		"Lib.sol":   "// SPDX-License-Identifier: GPL-3.0\npragma solidity ^0.8.20;\nlibrary Lib {}",
	}

	flattened, err := flatten(files, "Token.sol")
	require.NoError(t, err)

	// Declarations precede their uses
	libIndex := strings.Index(flattened, "library Lib")
	baseIndex := strings.Index(flattened, "contract Base")
	tokenIndex := strings.Index(flattened, "contract Token")
	require.True(t, libIndex >= 0 && baseIndex >= 0 && tokenIndex >= 0)
	assert.Less(t, libIndex, baseIndex)
	assert.Less(t, baseIndex, tokenIndex)

	// One license, one pragma, no surviving import statements
	assert.Equal(t, 1, strings.Count(flattened, "SPDX-License-Identifier"))
	assert.Equal(t, 1, strings.Count(flattened, "pragma solidity"))
	assert.NotContains(t, flattened, "import ")
}

func TestFlattenDiamondDependency(t *testing.T) {
	files := map[string]string{
		"Main.sol": "pragma solidity ^0.8.20;\nimport \"./A.sol\";\nimport \"./B.sol\";\ncontract Main {}",
		"A.sol":    "pragma solidity ^0.8.20;\nimport \"./Shared.sol\";\ncontract A {}",
		"B.sol":    "pragma solidity ^0.8.20;\nimport \"./Shared.sol\";\ncontract B {}",
		"Shared.sol": "pragma solidity ^0.8.20;\ncontract Shared {}",
	}

	flattened, err := flatten(files, "Main.sol")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(flattened, "contract Shared"))
}

func TestFlattenUnresolvableImport(t *testing.T) {
	files := map[string]string{
		"Main.sol": "pragma solidity ^0.8.20;\nimport \"./Missing.sol\";\ncontract Main {}",
	}
	_, err := flatten(files, "Main.sol")
	assert.Error(t, err)

	_, err = flatten(files, "Absent.sol")
	assert.Error(t, err)
}
