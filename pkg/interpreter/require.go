package interpreter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// LibraryExtension is appended to a library name when searching for it.
const LibraryExtension = ".dern"

// builtinRequire loads a library by name once. Each library path is tried
// in order and the first existing <name>.dern is evaluated.
func builtinRequire(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewErrorf("Builtin 'require' expects one argument. %d arguments were given.", args.Len())
	}
	nameArg := args.At(0)
	if !nameArg.Is(runtime.KindSymbol) && !nameArg.Is(runtime.KindString) {
		return i.store.NewErrorf("First argument to builtin 'require' must be symbol or string (library name). Type '%s' was given.", nameArg.Kind())
	}
	name := nameArg.Text()
	if i.HasLibrary(name) {
		return i.store.NewBoolean(true)
	}
	path, searched := i.findLibrary(name)
	if path == "" {
		return i.store.NewErrorf("Builtin 'require' cannot find library '%s'. Searched: %s", name, strings.Join(searched, ", "))
	}
	i.logger.Debug("loading library", "name", name, "path", path)
	result := i.ReadAndEvalPath(path)
	if result.Is(runtime.KindError) {
		return result
	}
	i.AddLibrary(name, result)
	return i.store.NewBoolean(true)
}

func (i *Interpreter) findLibrary(name string) (string, []string) {
	dirs := i.libraryPaths
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	var searched []string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name+LibraryExtension)
		searched = append(searched, candidate)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, searched
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			i.logger.Warn("library path unreadable", "path", candidate, "error", err)
		}
	}
	return "", searched
}
