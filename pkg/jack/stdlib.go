package jack

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"hmy.dev/n2t-toolchain/pkg/utils"
)

//go:embed stdlib.json
var stdlibSource []byte

type stdlibArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type stdlibEntry struct {
	Kind   string      `json:"kind"`
	Return string      `json:"return"`
	Args   []stdlibArg `json:"args"`
}

// StandardLibraryABI maps a Jack OS class name to its public subroutines'
// signatures, keyed by subroutine name. It is populated once, at program
// startup, from the embedded stdlib.json table and is meant to be merged
// straight into a jack.Program (see cmd/jack_compiler's '--stdlib' flag) as
// ordinary, body-less Class entries so calls into Memory/Math/String/Array/
// Output/Keyboard/Screen/Sys resolve without requiring their Jack sources.
var StandardLibraryABI = map[string]map[string]Subroutine{}

func init() {
	raw := map[string]map[string]stdlibEntry{}
	if err := json.Unmarshal(stdlibSource, &raw); err != nil {
		panic(fmt.Sprintf("jack: malformed embedded stdlib.json: %s", err))
	}

	for className, subs := range raw {
		StandardLibraryABI[className] = map[string]Subroutine{}

		for subName, entry := range subs {
			args := utils.OrderedMap[string, Variable]{}
			for _, a := range entry.Args {
				args.Set(a.Name, Variable{Name: a.Name, VarType: Parameter, DataType: stdlibType(a.Type)})
			}

			StandardLibraryABI[className][subName] = Subroutine{
				Name:      subName,
				Type:      SubroutineType(entry.Kind),
				Return:    stdlibType(entry.Return),
				Arguments: args,
			}
		}
	}
}

func stdlibType(name string) DataType {
	switch name {
	case "int":
		return DataType{Main: Int}
	case "char":
		return DataType{Main: Char}
	case "boolean", "bool":
		return DataType{Main: Bool}
	case "void", "":
		return DataType{Main: Void}
	default:
		return DataType{Main: Object, Subtype: name}
	}
}
