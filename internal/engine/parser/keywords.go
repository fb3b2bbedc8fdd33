package parser

// stdLevels orders language standards so keyword sets can be cumulative.
var stdLevels = map[string]int{
	"c89": 89, "c90": 89, "iso9899:1990": 89,
	"c99": 99, "c9x": 99,
	"c11": 111, "c1x": 111,
	"c17": 117, "c18": 117,
	"c2x": 123, "c23": 123,
	"c++98": 198, "c++03": 198,
	"c++11": 211, "c++0x": 211,
	"c++14": 214, "c++1y": 214,
	"c++17": 217, "c++1z": 217,
	"c++20": 220, "c++2a": 220,
	"c++23": 223, "c++2b": 223,
	"c++26": 226, "c++2c": 226,
}

type keywordSet struct {
	since int
	words []string
}

var cKeywords = []keywordSet{
	{89, []string{
		"auto", "break", "case", "char", "const", "continue", "default", "do", "double",
		"else", "enum", "extern", "float", "for", "goto", "if", "int", "long", "register",
		"return", "short", "signed", "sizeof", "static", "struct", "switch", "typedef",
		"union", "unsigned", "void", "volatile", "while",
	}},
	{99, []string{"inline", "restrict", "_Bool", "_Complex", "_Imaginary"}},
	{111, []string{"_Alignas", "_Alignof", "_Atomic", "_Generic", "_Noreturn", "_Static_assert", "_Thread_local"}},
	{123, []string{
		"alignas", "alignof", "bool", "constexpr", "false", "nullptr", "static_assert",
		"thread_local", "true", "typeof", "typeof_unqual",
	}},
}

var cxxKeywords = []keywordSet{
	{198, []string{
		"asm", "auto", "bool", "break", "case", "catch", "char", "class", "const",
		"const_cast", "continue", "default", "delete", "do", "double", "dynamic_cast",
		"else", "enum", "explicit", "export", "extern", "false", "float", "for", "friend",
		"goto", "if", "inline", "int", "long", "mutable", "namespace", "new", "operator",
		"private", "protected", "public", "register", "reinterpret_cast", "return",
		"short", "signed", "sizeof", "static", "static_cast", "struct", "switch",
		"template", "this", "throw", "true", "try", "typedef", "typeid", "typename",
		"union", "unsigned", "using", "virtual", "void", "volatile", "wchar_t", "while",
	}},
	{211, []string{
		"alignas", "alignof", "char16_t", "char32_t", "constexpr", "decltype", "noexcept",
		"nullptr", "static_assert", "thread_local",
	}},
	{220, []string{"char8_t", "co_await", "co_return", "co_yield", "concept", "consteval", "constinit", "requires"}},
}

// snippet is a statement or declaration template offered in code positions.
type snippet struct {
	trigger string
	body    string
	since   int
	cxx     bool // C++ only
	stmt    bool // statement position only
}

var cSnippets = []snippet{
	{trigger: "if", body: "if (${1:condition}) {\n\t$0\n}", stmt: true},
	{trigger: "else", body: "else {\n\t$0\n}", stmt: true},
	{trigger: "for", body: "for (${1:init}; ${2:condition}; ${3:inc}) {\n\t$0\n}", stmt: true},
	{trigger: "while", body: "while (${1:condition}) {\n\t$0\n}", stmt: true},
	{trigger: "do", body: "do {\n\t$0\n} while (${1:condition});", stmt: true},
	{trigger: "switch", body: "switch (${1:condition}) {\n\tcase ${2:value}:\n\t\t$0\n}", stmt: true},
	{trigger: "return", body: "return ${1:expression};", stmt: true},
	{trigger: "sizeof", body: "sizeof(${1:expression})"},
	{trigger: "typedef", body: "typedef ${1:type} ${2:name};"},
	{trigger: "struct", body: "struct ${1:name} {\n\t$0\n};"},
	{trigger: "try", body: "try {\n\t$0\n} catch (${1:declaration}) {\n}", stmt: true, cxx: true},
	{trigger: "class", body: "class ${1:name} {\npublic:\n\t$0\n};", cxx: true},
	{trigger: "namespace", body: "namespace ${1:name} {\n$0\n}", cxx: true},
	{trigger: "template", body: "template <typename ${1:T}>", cxx: true},
	{trigger: "using", body: "using ${1:name} = ${2:type};", since: 211, cxx: true},
	{trigger: "static_cast", body: "static_cast<${1:type}>(${2:expression})", cxx: true},
	{trigger: "static_assert", body: "static_assert(${1:condition}, \"${2:message}\");", since: 211, cxx: true},
}

var goKeywords = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface", "map",
	"package", "range", "return", "select", "struct", "switch", "type", "var",
}

var goSnippets = []snippet{
	{trigger: "if", body: "if ${1:condition} {\n\t$0\n}", stmt: true},
	{trigger: "iferr", body: "if err != nil {\n\treturn ${1:err}\n}", stmt: true},
	{trigger: "for", body: "for ${1:i} := 0; $1 < ${2:n}; $1++ {\n\t$0\n}", stmt: true},
	{trigger: "forr", body: "for ${1:_}, ${2:v} := range ${3:items} {\n\t$0\n}", stmt: true},
	{trigger: "switch", body: "switch ${1:value} {\ncase ${2:x}:\n\t$0\n}", stmt: true},
	{trigger: "select", body: "select {\ncase ${1:v} := <-${2:ch}:\n\t$0\n}", stmt: true},
	{trigger: "func", body: "func ${1:name}(${2}) ${3:error} {\n\t$0\n}"},
	{trigger: "type", body: "type ${1:Name} struct {\n\t$0\n}"},
}

var goBuiltinFuncs = []string{
	"append", "cap", "clear", "close", "complex", "copy", "delete", "imag", "len",
	"make", "max", "min", "new", "panic", "print", "println", "real", "recover",
}

var goBuiltinTypes = []string{
	"any", "bool", "byte", "comparable", "complex64", "complex128", "error", "float32",
	"float64", "int", "int8", "int16", "int32", "int64", "rune", "string", "uint",
	"uint8", "uint16", "uint32", "uint64", "uintptr",
}

var goBuiltinConsts = []string{"true", "false", "iota", "nil"}

func keywordsFor(lang, std string) []string {
	sets := cKeywords
	if lang == LangCPP {
		sets = cxxKeywords
	}
	level := stdLevels[std]
	var out []string
	for _, set := range sets {
		if set.since <= level {
			out = append(out, set.words...)
		}
	}
	return out
}

func snippetsFor(lang, std string, inFunction bool) []snippet {
	if lang == LangGo {
		var out []snippet
		for _, s := range goSnippets {
			if !s.stmt || inFunction {
				out = append(out, s)
			}
		}
		return out
	}
	level := stdLevels[std]
	var out []snippet
	for _, s := range cSnippets {
		if s.cxx && lang != LangCPP {
			continue
		}
		if s.since > level || (s.stmt && !inFunction) {
			continue
		}
		out = append(out, s)
	}
	return out
}
