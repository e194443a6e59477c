package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsSource = `class OrderQueue extends EventEmitter {
  constructor(limit) {
    this.limit = limit;
  }

  push(order) {
    const key = order.id;
    this.notify(key);
    throw new QueueFullError("full");
  }
}

function drainQueue(queue, batchSize = 10) {
  const drained = [];
  try {
    queue.push(new Order());
  } catch (err) {
    return drained;
  }
  return drained;
}

const describeQueue = (queue) => {
  return queue.limit;
};
`

func parseJS(t *testing.T) *ParsedFile {
	t.Helper()
	pf, err := NewJSTSParser().Parse("queue.js", []byte(jsSource))
	require.NoError(t, err)
	return pf
}

func TestJSParserExtractsClassAndMethods(t *testing.T) {
	pf := parseJS(t)

	_, classIdx, ok := findEntity(pf, KindClass, "OrderQueue")
	require.True(t, ok)

	inherits := edgesFrom(pf, EdgeInheritsFrom, classIdx)
	require.Len(t, inherits, 1)
	assert.Equal(t, "EventEmitter", inherits[0].TargetName)

	push, _, ok := findEntity(pf, KindFunction, "push")
	require.True(t, ok)
	assert.True(t, push.IsMethod)
	assert.Equal(t, "OrderQueue", push.ClassName)

	drain, _, ok := findEntity(pf, KindFunction, "drainQueue")
	require.True(t, ok)
	assert.False(t, drain.IsMethod)
}

func TestJSParserNamesArrowFunctionFromDeclarator(t *testing.T) {
	pf := parseJS(t)
	arrow, _, ok := findEntity(pf, KindFunction, "describeQueue")
	require.True(t, ok, "arrow function should take its declarator's name")
	assert.False(t, arrow.IsMethod)
}

func TestJSParserExtractsVariablesAndParameters(t *testing.T) {
	pf := parseJS(t)

	_, drainIdx, ok := findEntity(pf, KindFunction, "drainQueue")
	require.True(t, ok)

	var paramNames []string
	for _, e := range edgesFrom(pf, EdgeHasParameter, drainIdx) {
		paramNames = append(paramNames, pf.Entities[e.DstIndex].Name)
	}
	assert.ElementsMatch(t, []string{"queue", "batchSize"}, paramNames)

	declares := edgesFrom(pf, EdgeDeclaresVariable, drainIdx)
	require.Len(t, declares, 1)
	assert.Equal(t, "drained", pf.Entities[declares[0].DstIndex].Name)

	// this.limit = ... declares a class attribute.
	var foundAttr bool
	for _, e := range pf.Entities {
		if e.Kind == KindVariable && e.Name == "limit" && e.ScopeType == ScopeClassAttribute {
			foundAttr = true
		}
	}
	assert.True(t, foundAttr)
}

func TestJSParserExtractsCallsAndExceptions(t *testing.T) {
	pf := parseJS(t)

	_, pushIdx, ok := findEntity(pf, KindFunction, "push")
	require.True(t, ok)
	_, drainIdx, ok := findEntity(pf, KindFunction, "drainQueue")
	require.True(t, ok)

	throws := edgesFrom(pf, EdgeRaisesException, pushIdx)
	require.Len(t, throws, 1)
	assert.Equal(t, "QueueFullError", throws[0].TargetName)

	var created []string
	for _, e := range edgesFrom(pf, EdgeCreatesObject, drainIdx) {
		created = append(created, e.TargetName)
	}
	assert.Contains(t, created, "Order")
}

func TestJSParserParsesTypeScript(t *testing.T) {
	src := `interface Shape { area(): number; }

class Circle implements Shape {
  constructor(private radius: number) {}

  area(): number {
    return Math.PI * this.radius * this.radius;
  }
}
`
	pf, err := NewJSTSParser().Parse("shapes.ts", []byte(src))
	require.NoError(t, err)

	_, _, ok := findEntity(pf, KindClass, "Shape")
	assert.True(t, ok, "interfaces are modeled as classes")
	_, _, ok = findEntity(pf, KindClass, "Circle")
	assert.True(t, ok)
	area, _, ok := findEntity(pf, KindFunction, "area")
	require.True(t, ok)
	assert.True(t, area.IsMethod)
}
