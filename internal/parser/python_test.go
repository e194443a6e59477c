package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySource = `import logging

@registry.register
class PaymentService(BaseService):
    def __init__(self, gateway):
        self.gateway = gateway

    def charge(self, amount, retries=3):
        total = amount
        total = total + 1
        try:
            result = self.gateway.send(total)
        except TimeoutError:
            raise PaymentError("timed out")
        return result


def build_service(config):
    svc = PaymentService(config)
    svc.charge(10)
    return svc
`

func parsePython(t *testing.T) *ParsedFile {
	t.Helper()
	pf, err := NewPythonParser().Parse("payments.py", []byte(pySource))
	require.NoError(t, err)
	return pf
}

func findEntity(pf *ParsedFile, kind EntityKind, name string) (Entity, int, bool) {
	for i, e := range pf.Entities {
		if e.Kind == kind && e.Name == name {
			return e, i, true
		}
	}
	return Entity{}, -1, false
}

func edgesFrom(pf *ParsedFile, kind EdgeKind, srcIndex int) []EdgeRef {
	var out []EdgeRef
	for _, e := range pf.Edges {
		if e.Kind == kind && e.SrcIndex == srcIndex {
			out = append(out, e)
		}
	}
	return out
}

func TestPythonParserExtractsClassAndMethods(t *testing.T) {
	pf := parsePython(t)

	class, classIdx, ok := findEntity(pf, KindClass, "PaymentService")
	require.True(t, ok, "class should be extracted")
	assert.Equal(t, "payments.py", class.FilePath)
	assert.Greater(t, class.EndLine, class.StartLine)

	init, _, ok := findEntity(pf, KindFunction, "__init__")
	require.True(t, ok)
	assert.True(t, init.IsMethod)
	assert.Equal(t, "PaymentService", init.ClassName)

	charge, _, ok := findEntity(pf, KindFunction, "charge")
	require.True(t, ok)
	assert.True(t, charge.IsMethod)
	assert.Contains(t, charge.Signature, "def charge")

	builder, _, ok := findEntity(pf, KindFunction, "build_service")
	require.True(t, ok)
	assert.False(t, builder.IsMethod)
	assert.Empty(t, builder.ClassName)

	inherits := edgesFrom(pf, EdgeInheritsFrom, classIdx)
	require.Len(t, inherits, 1)
	assert.Equal(t, "BaseService", inherits[0].TargetName)
	assert.Equal(t, -1, inherits[0].DstIndex, "inheritance targets resolve cross-file")

	decorated := edgesFrom(pf, EdgeDecoratedBy, classIdx)
	require.Len(t, decorated, 1)
	assert.Equal(t, "registry.register", decorated[0].TargetName)
}

func TestPythonParserExtractsVariables(t *testing.T) {
	pf := parsePython(t)

	_, chargeIdx, ok := findEntity(pf, KindFunction, "charge")
	require.True(t, ok)

	// self and cls never become parameters.
	var paramNames []string
	for _, e := range edgesFrom(pf, EdgeHasParameter, chargeIdx) {
		paramNames = append(paramNames, pf.Entities[e.DstIndex].Name)
	}
	assert.ElementsMatch(t, []string{"amount", "retries"}, paramNames)
	for _, name := range paramNames {
		e, _, ok := findEntity(pf, KindVariable, name)
		require.True(t, ok)
		assert.Equal(t, ScopeParameter, e.ScopeType)
	}

	// First assignment declares, second modifies.
	declares := edgesFrom(pf, EdgeDeclaresVariable, chargeIdx)
	var declared []string
	for _, e := range declares {
		declared = append(declared, pf.Entities[e.DstIndex].Name)
	}
	assert.Contains(t, declared, "total")
	assert.Contains(t, declared, "result")

	modifies := edgesFrom(pf, EdgeModifiesVariable, chargeIdx)
	require.Len(t, modifies, 1)
	assert.Equal(t, "total", pf.Entities[modifies[0].DstIndex].Name)
	assert.Equal(t, "assign", modifies[0].ModificationType)

	// self.gateway = ... is a class attribute; the same name also exists
	// as __init__'s parameter, so match on scope.
	var foundAttr bool
	for _, e := range pf.Entities {
		if e.Kind == KindVariable && e.Name == "gateway" && e.ScopeType == ScopeClassAttribute {
			foundAttr = true
		}
	}
	assert.True(t, foundAttr, "self.gateway should yield a class_attribute variable")
}

func TestPythonParserExtractsCallsAndExceptions(t *testing.T) {
	pf := parsePython(t)

	_, chargeIdx, ok := findEntity(pf, KindFunction, "charge")
	require.True(t, ok)
	_, builderIdx, ok := findEntity(pf, KindFunction, "build_service")
	require.True(t, ok)

	raises := edgesFrom(pf, EdgeRaisesException, chargeIdx)
	require.Len(t, raises, 1)
	assert.Equal(t, "PaymentError", raises[0].TargetName)

	handles := edgesFrom(pf, EdgeHandlesException, chargeIdx)
	require.Len(t, handles, 1)
	assert.Equal(t, "TimeoutError", handles[0].TargetName)

	// PaymentService(config) is a constructor call, not a plain CALLS edge.
	creates := edgesFrom(pf, EdgeCreatesObject, builderIdx)
	require.Len(t, creates, 1)
	assert.Equal(t, "PaymentService", creates[0].TargetName)

	var callTargets []string
	for _, e := range edgesFrom(pf, EdgeCalls, builderIdx) {
		callTargets = append(callTargets, e.TargetName)
	}
	assert.Contains(t, callTargets, "svc.charge")
}

func TestPythonParserSyntaxErrorStillYieldsEntities(t *testing.T) {
	src := "def good():\n    pass\n\ndef broken(:\n"
	pf, err := NewPythonParser().Parse("broken.py", []byte(src))
	require.NoError(t, err, "syntax errors are recoverable")
	_, _, ok := findEntity(pf, KindFunction, "good")
	assert.True(t, ok, "entities before the error survive")
}

func TestRegistryOversizeFile(t *testing.T) {
	registry := NewRegistry(16)
	pf, err := registry.ParseFile("big.py", []byte("class Huge:\n    pass\n# padding padding padding"))
	require.NoError(t, err)
	assert.Empty(t, pf.Entities)
	assert.Contains(t, pf.Errors, "oversize")
	assert.NotEmpty(t, pf.ContentHash)
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	registry := NewRegistry(1 << 20)
	pf, err := registry.ParseFile("notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Empty(t, pf.Entities)
	require.Len(t, pf.Errors, 1)
	assert.Contains(t, pf.Errors[0], "unsupported language")
}

func TestRegistryDetectLanguage(t *testing.T) {
	registry := NewRegistry(1 << 20)
	lang, ok := registry.DetectLanguage("src/app.py")
	require.True(t, ok)
	assert.Equal(t, "python", lang)

	lang, ok = registry.DetectLanguage("src/app.tsx")
	require.True(t, ok)
	assert.Equal(t, "javascript", lang)

	_, ok = registry.DetectLanguage("README.md")
	assert.False(t, ok)
}
