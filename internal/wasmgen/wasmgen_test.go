package wasmgen

import (
	"testing"

	"github.com/nyxlang/nyx/internal/lexer"
	"github.com/nyxlang/nyx/internal/mir"
)

func checkMagicAndVersion(t *testing.T, result []byte) {
	t.Helper()
	if len(result) < 8 {
		t.Fatalf("WASM output too short: %d bytes", len(result))
	}
	if result[0] != 0x00 || result[1] != 0x61 || result[2] != 0x73 || result[3] != 0x6D {
		t.Errorf("expected WASM magic \\0asm, got %x %x %x %x", result[0], result[1], result[2], result[3])
	}
	if result[4] != 0x01 || result[5] != 0x00 || result[6] != 0x00 || result[7] != 0x00 {
		t.Errorf("expected WASM version 1, got %x %x %x %x", result[4], result[5], result[6], result[7])
	}
}

func addFunc(a, b mir.LocalID, ret mir.LocalID) *mir.Function {
	fn := &mir.Function{
		Name:       "add",
		IsPublic:   true,
		Params:     []mir.LocalID{a, b},
		ReturnType: mir.TypeInt,
		Locals: []mir.Local{
			{Name: "$ret", Type: mir.TypeInt},
			{Name: "a", Type: mir.TypeInt},
			{Name: "b", Type: mir.TypeInt},
		},
		Entry: 0,
	}
	fn.Blocks = []mir.BasicBlock{{
		Statements: []mir.Statement{
			mir.AssignStatement{
				Target: mir.LocalPlace(ret),
				Value: mir.BinaryOpRvalue{
					Op:    lexer.PLUS,
					Left:  mir.Copy{Place: mir.LocalPlace(a), Type: mir.TypeInt},
					Right: mir.Copy{Place: mir.LocalPlace(b), Type: mir.TypeInt},
					Type:  mir.TypeInt,
				},
			},
		},
		Terminator: mir.ReturnTerminator{},
	}}
	return fn
}

func TestMagicAndVersion(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.AddFunction(addFunc(1, 2, mir.ReturnLocal))

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	checkMagicAndVersion(t, result)
}

func TestSectionsPresent(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.AddFunction(addFunc(1, 2, mir.ReturnLocal))

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sections := parseSections(result[8:])

	want := map[byte]string{
		sectionType:     "type",
		sectionImport:   "import",
		sectionFunction: "function",
		sectionTable:    "table",
		sectionMemory:   "memory",
		sectionExport:   "export",
		sectionElement:  "element",
		sectionCode:     "code",
	}
	seen := map[byte]bool{}
	for _, s := range sections {
		seen[s.id] = true
	}
	for id, name := range want {
		if !seen[id] {
			t.Errorf("missing %s section (id %d)", name, id)
		}
	}
}

func TestFunctionSignature(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.AddFunction(addFunc(1, 2, mir.ReturnLocal))

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sections := parseSections(result[8:])

	for _, s := range sections {
		if s.id != sectionType {
			continue
		}
		found := false
		for i := 0; i+5 < len(s.data); i++ {
			if s.data[i] == 0x60 && s.data[i+1] == 0x02 &&
				s.data[i+2] == valI64 && s.data[i+3] == valI64 &&
				s.data[i+4] == 0x01 && s.data[i+5] == valI64 {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected a (i64, i64) -> i64 signature in the type section")
		}
	}
}

func TestImportSection(t *testing.T) {
	prog := mir.NewProgram("test", false)
	prog.AddFunction(addFunc(1, 2, mir.ReturnLocal))

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sections := parseSections(result[8:])
	for _, s := range sections {
		if s.id != sectionImport {
			continue
		}
		if !containsBytes(s.data, []byte("rt_print_int")) {
			t.Error("expected rt_print_int among the runtime imports")
		}
		if containsBytes(s.data, []byte("rt_perform")) {
			t.Error("expected no rt_perform import: perform dispatch uses call_indirect through the handler vtable")
		}
	}
}

// TestIfElseSwitchInt lowers a two-armed if/else over a Bool-typed
// discriminant (as internal/lower emits for every `if`) and checks the
// br_table's case labels land in ascending index order — the bug that
// slipped through the first pass of this file had them inverted, which
// would silently route every __block value to the wrong case body.
func TestIfElseSwitchInt(t *testing.T) {
	fn := &mir.Function{
		Name:       "abs",
		IsPublic:   true,
		Params:     []mir.LocalID{1},
		ReturnType: mir.TypeInt,
		Locals: []mir.Local{
			{Name: "$ret", Type: mir.TypeInt},
			{Name: "x", Type: mir.TypeInt},
			{Name: "cond", Type: mir.TypeBool},
		},
		Entry: 0,
	}
	const (
		xLocal    mir.LocalID = 1
		condLocal mir.LocalID = 2
	)
	fn.Blocks = []mir.BasicBlock{
		{ // bb0: cond = x < 0; switch cond
			Statements: []mir.Statement{
				mir.AssignStatement{
					Target: mir.LocalPlace(condLocal),
					Value: mir.BinaryOpRvalue{
						Op:    lexer.LT,
						Left:  mir.Copy{Place: mir.LocalPlace(xLocal), Type: mir.TypeInt},
						Right: mir.Constant{Kind: mir.ConstInt, Int: 0, Type: mir.TypeInt},
						Type:  mir.TypeBool,
					},
				},
			},
			Terminator: mir.SwitchIntTerminator{
				Discriminant: mir.Copy{Place: mir.LocalPlace(condLocal), Type: mir.TypeBool},
				Cases:        []mir.SwitchCase{{Value: 1, Target: 1}},
				Default:      2,
			},
		},
		{ // bb1 (then): return 0 - x
			Statements: []mir.Statement{
				mir.AssignStatement{
					Target: mir.LocalPlace(mir.ReturnLocal),
					Value: mir.BinaryOpRvalue{
						Op:    lexer.MINUS,
						Left:  mir.Constant{Kind: mir.ConstInt, Int: 0, Type: mir.TypeInt},
						Right: mir.Copy{Place: mir.LocalPlace(xLocal), Type: mir.TypeInt},
						Type:  mir.TypeInt,
					},
				},
			},
			Terminator: mir.ReturnTerminator{},
		},
		{ // bb2 (else): return x
			Statements: []mir.Statement{
				mir.AssignStatement{
					Target: mir.LocalPlace(mir.ReturnLocal),
					Value:  mir.UseRvalue{Operand: mir.Copy{Place: mir.LocalPlace(xLocal), Type: mir.TypeInt}},
				},
			},
			Terminator: mir.ReturnTerminator{},
		},
	}

	prog := mir.NewProgram("test", false)
	prog.AddFunction(fn)

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	checkMagicAndVersion(t, result)

	sections := parseSections(result[8:])
	var code []byte
	for _, s := range sections {
		if s.id == sectionCode {
			code = s.data
		}
	}
	if code == nil {
		t.Fatal("missing code section")
	}
	if !containsByte(code, opBrTable) {
		t.Fatal("expected a br_table dispatching between the if/else arms")
	}

	i := indexOfByte(code, opBrTable)
	if i < 0 {
		t.Fatal("br_table not found in code section")
	}
	// count (LEB128) immediately follows the opcode; with 3 basic blocks
	// the count is 3, and the 3 target labels must read 0, 1, 2 in order
	// (then a default), matching block_i opening outermost-to-innermost
	// in descending index order.
	count := code[i+1]
	if count != 3 {
		t.Fatalf("expected br_table count 3, got %d", count)
	}
	for k := 0; k < 3; k++ {
		label := code[i+2+k]
		if label != byte(k) {
			t.Errorf("br_table entry %d: expected label %d, got %d", k, k, label)
		}
	}

	// the discriminant is Bool-typed (already i32, as a bare local load),
	// so no i32.wrap_i64 should appear before the comparison driving the
	// case-1 branch: a stray wrap would indicate the i32/i64 mismatch this
	// test guards against.
	if containsByte(code[:i], opI32WrapI64) {
		t.Error("unexpected i32.wrap_i64 ahead of a Bool discriminant's br_table")
	}
}

func TestStringConstant(t *testing.T) {
	fn := &mir.Function{
		Name:       "greet",
		IsPublic:   true,
		ReturnType: mir.TypeVoid,
		Locals:     []mir.Local{{Name: "$ret", Type: mir.TypeVoid}},
		Entry:      0,
	}
	fn.Blocks = []mir.BasicBlock{{
		Statements: []mir.Statement{
			mir.AssignStatement{
				Target: mir.LocalPlace(mir.ReturnLocal),
				Value: mir.CallPureRvalue{
					Func: mir.FuncRef{Direct: mir.BuiltinPrint},
					Args: []mir.Operand{mir.Constant{Kind: mir.ConstString, Str: "hello", Type: mir.TypeString}},
					Type: mir.TypeVoid,
				},
			},
		},
		Terminator: mir.ReturnTerminator{},
	}}

	prog := mir.NewProgram("test", false)
	prog.AddFunction(fn)

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sections := parseSections(result[8:])
	for _, s := range sections {
		if s.id == sectionData {
			if !containsBytes(s.data, []byte("hello\x00")) {
				t.Error("expected NUL-terminated \"hello\" in the data section")
			}
		}
		if s.id == sectionCode {
			if !containsByte(s.data, opCall) {
				t.Error("expected a call instruction for rt_print_string")
			}
		}
	}
}

func TestEntryExport(t *testing.T) {
	fn := &mir.Function{
		Name:       "__nyx_main",
		IsEntry:    true,
		IsPublic:   true,
		ReturnType: mir.TypeInt,
		Locals:     []mir.Local{{Name: "$ret", Type: mir.TypeInt}},
		Entry:      0,
	}
	fn.Blocks = []mir.BasicBlock{{
		Statements: []mir.Statement{
			mir.AssignStatement{
				Target: mir.LocalPlace(mir.ReturnLocal),
				Value:  mir.UseRvalue{Operand: mir.Constant{Kind: mir.ConstInt, Int: 0, Type: mir.TypeInt}},
			},
		},
		Terminator: mir.ReturnTerminator{},
	}}

	prog := mir.NewProgram("test", true)
	prog.AddFunction(fn)
	if !prog.HasEntry {
		t.Fatal("expected AddFunction to register the entry function")
	}

	result, err := NewBackend(prog).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sections := parseSections(result[8:])
	for _, s := range sections {
		if s.id == sectionExport {
			if !containsBytes(s.data, []byte("nyx_entry")) {
				t.Error("expected \"nyx_entry\" export for the entry function")
			}
			if !containsBytes(s.data, []byte("memory")) {
				t.Error("expected \"memory\" export")
			}
		}
	}
}

func TestLEB128Encoding(t *testing.T) {
	utests := []struct {
		value    uint64
		expected []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
	}
	for _, tt := range utests {
		got := encodeLEB128U(tt.value)
		if !bytesEqual(got, tt.expected) {
			t.Errorf("encodeLEB128U(%d): expected %v, got %v", tt.value, tt.expected, got)
		}
	}

	stests := []struct {
		value    int64
		expected []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{-64, []byte{0x40}},
		{-128, []byte{0x80, 0x7F}},
	}
	for _, tt := range stests {
		got := encodeLEB128S(tt.value)
		if !bytesEqual(got, tt.expected) {
			t.Errorf("encodeLEB128S(%d): expected %v, got %v", tt.value, tt.expected, got)
		}
	}
}

func TestEmitToWord(t *testing.T) {
	for _, tc := range []struct {
		name string
		typ  *mir.Type
		want byte // the opcode emitToWord should append; 0 means none
	}{
		{"Int", mir.TypeInt, 0},
		{"Float", mir.TypeFloat, opI64ReinterpretF64},
		{"Bool", mir.TypeBool, opI64ExtendI32U},
		{"String", mir.TypeString, opI64ExtendI32U},
	} {
		t.Run(tc.name, func(t *testing.T) {
			boxed := emitToWord(nil, tc.typ)
			if tc.want == 0 {
				if len(boxed) != 0 {
					t.Errorf("expected no boxing opcode for %s, got %v", tc.name, boxed)
				}
				return
			}
			if len(boxed) != 1 || boxed[0] != tc.want {
				t.Errorf("emitToWord(%s): expected [%x], got %v", tc.name, tc.want, boxed)
			}
		})
	}
}

// --- helpers -----------------------------------------------------------

type section struct {
	id   byte
	data []byte
}

func parseSections(data []byte) []section {
	var sections []section
	i := 0
	for i < len(data) {
		id := data[i]
		i++
		size, n := decodeLEB128U(data[i:])
		i += n
		if i+int(size) > len(data) {
			break
		}
		sections = append(sections, section{id: id, data: data[i : i+int(size)]})
		i += int(size)
	}
	return sections
}

func decodeLEB128U(data []byte) (uint64, int) {
	var result uint64
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		result |= uint64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			return result, i + 1
		}
	}
	return result, len(data)
}

func containsByte(data []byte, b byte) bool {
	for _, d := range data {
		if d == b {
			return true
		}
	}
	return false
}

func indexOfByte(data []byte, b byte) int {
	for i, d := range data {
		if d == b {
			return i
		}
	}
	return -1
}

func containsBytes(data, sub []byte) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(data); i++ {
		match := true
		for j := range sub {
			if data[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
