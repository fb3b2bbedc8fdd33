package parser

import (
	"fmt"
	"strings"

	"autocomplete/internal/engine/frontend"
)

type macroDef struct {
	name   string
	value  string
	params []string
}

// compileOptions is what the frontend understands of the argument list.
type compileOptions struct {
	language    string // from -x
	std         string
	defines     []macroDef
	undefs      map[string]bool
	quoteDirs   []string
	includeDirs []string
	systemDirs  []string
	preIncludes []string
	diagnostics []frontend.Diagnostic
}

// silentPrefixes are flags that change code generation or warnings only.
var silentPrefixes = []string{"-W", "-f", "-O", "-g", "-m", "-pedantic", "-stdlib=", "--target=", "--sysroot="}

var silentFlags = map[string]bool{
	"-c": true, "-w": true, "-pthread": true, "-nostdinc": true, "-nostdinc++": true,
	"-E": true, "-S": true, "-v": true, "-MD": true, "-MMD": true, "-fsyntax-only": true,
}

// flagsWithValue consume the next argument when given without an attached value.
var flagsWithValue = map[string]bool{
	"-I": true, "-D": true, "-U": true, "-x": true, "-iquote": true, "-isystem": true,
	"-include": true, "-o": true, "-MF": true, "-MT": true, "-isysroot": true, "-idirafter": true,
	"-target": true,
}

func parseArgs(args []string, path string) compileOptions {
	opts := compileOptions{undefs: make(map[string]bool)}
	unused := func(arg string) {
		opts.diagnostics = append(opts.diagnostics, frontend.Diagnostic{
			Severity: frontend.SeverityWarning,
			Message:  fmt.Sprintf("argument unused during compilation: '%s'", arg),
			Location: frontend.Location{File: path},
		})
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func(flag string) (string, bool) {
			if rest := strings.TrimPrefix(arg, flag); rest != arg && rest != "" {
				return strings.TrimPrefix(rest, "="), true
			}
			if arg == flag && i+1 < len(args) {
				i++
				return args[i], true
			}
			return "", false
		}

		switch {
		case strings.HasPrefix(arg, "-std="):
			opts.std = strings.TrimPrefix(arg, "-std=")
		case strings.HasPrefix(arg, "-iquote"):
			if v, ok := value("-iquote"); ok {
				opts.quoteDirs = append(opts.quoteDirs, v)
			}
		case strings.HasPrefix(arg, "-isystem"):
			if v, ok := value("-isystem"); ok {
				opts.systemDirs = append(opts.systemDirs, v)
			}
		case strings.HasPrefix(arg, "-idirafter"):
			if v, ok := value("-idirafter"); ok {
				opts.systemDirs = append(opts.systemDirs, v)
			}
		case arg == "-include":
			if v, ok := value("-include"); ok {
				opts.preIncludes = append(opts.preIncludes, v)
			}
		case strings.HasPrefix(arg, "-I"):
			if v, ok := value("-I"); ok {
				opts.includeDirs = append(opts.includeDirs, v)
			}
		case strings.HasPrefix(arg, "-D"):
			if v, ok := value("-D"); ok {
				def := parseDefine(v)
				delete(opts.undefs, def.name)
				opts.defines = append(opts.defines, def)
			}
		case strings.HasPrefix(arg, "-U"):
			if v, ok := value("-U"); ok {
				opts.undefs[v] = true
			}
		case strings.HasPrefix(arg, "-x"):
			if v, ok := value("-x"); ok {
				opts.language = languageForX(v)
			}
		case flagsWithValue[arg]:
			// -o, -MF and friends: consume and ignore.
			i++
		case silentFlags[arg] || hasAnyPrefix(arg, silentPrefixes...):
		default:
			unused(arg)
		}
	}
	return opts
}

func parseDefine(v string) macroDef {
	name, value, hasValue := strings.Cut(v, "=")
	if !hasValue {
		value = "1"
	}
	def := macroDef{name: name, value: value}
	if open := strings.IndexByte(name, '('); open > 0 && strings.HasSuffix(name, ")") {
		def.name = name[:open]
		def.params = splitAndTrim(name[open+1:len(name)-1], ",")
	}
	return def
}

func languageForX(v string) string {
	switch strings.ToLower(v) {
	case "c", "c-header":
		return LangC
	case "c++", "c++-header", "cpp", "cxx":
		return LangCPP
	case "go":
		return LangGo
	default:
		return ""
	}
}

// checkStd validates -std against the unit language and returns the
// effective standard.
func (o *compileOptions) checkStd(lang, path string) string {
	if lang == LangGo {
		return ""
	}
	if o.std == "" {
		if lang == LangC {
			return "c17"
		}
		return "c++17"
	}
	std := strings.ToLower(o.std)
	isCXX := strings.HasPrefix(std, "c++") || strings.HasPrefix(std, "gnu++")
	_, known := stdLevels[strings.Replace(std, "gnu", "c", 1)]
	switch {
	case !known:
		o.diagnostics = append(o.diagnostics, frontend.Diagnostic{
			Severity: frontend.SeverityError,
			Message:  fmt.Sprintf("invalid value '%s' in '-std=%s'", o.std, o.std),
			Location: frontend.Location{File: path},
		})
		return checkStdFallback(lang)
	case isCXX != (lang == LangCPP):
		langName := "C"
		if lang == LangCPP {
			langName = "C++"
		}
		o.diagnostics = append(o.diagnostics, frontend.Diagnostic{
			Severity: frontend.SeverityError,
			Message:  fmt.Sprintf("invalid argument '-std=%s' not allowed with '%s'", o.std, langName),
			Location: frontend.Location{File: path},
		})
		return checkStdFallback(lang)
	}
	return strings.Replace(std, "gnu", "c", 1)
}

func checkStdFallback(lang string) string {
	if lang == LangC {
		return "c17"
	}
	return "c++17"
}

func splitAndTrim(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func hasAnyPrefix(value string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
