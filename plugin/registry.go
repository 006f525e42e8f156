package plugin

import "fmt"

// DensityKernels is a global map of DensityKernel plugins.
var DensityKernels = map[string]func() DensityKernel{
	"grid_mean": func() DensityKernel {
		return &GridMeanDensity{}
	},
}

// MotionKernels is a global map of MotionKernel plugins.
// Build-tagged kernels add themselves in init().
var MotionKernels = map[string]func() MotionKernel{
	"block_match": func() MotionKernel {
		return &BlockMatchMotion{}
	},
}

func DensityKernelLookup(name string) (DensityKernel, error) {
	factory, ok := DensityKernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown density kernel: %s", name)
	}
	return factory(), nil
}

func MotionKernelLookup(name string) (MotionKernel, error) {
	factory, ok := MotionKernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown motion kernel: %s", name)
	}
	return factory(), nil
}

// OutputConfig is one stanza of the "outputs" config list
type OutputConfig struct {
	Type      string `json:"type" yaml:"type"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
	BatchSize int    `json:"batch,omitempty" yaml:"batch,omitempty"`
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Outputs is a global map of OutputAdapter constructors.
// Each one returns a nil interface on error, never a typed nil.
var Outputs = map[string]func(oc OutputConfig) (OutputAdapter, error){
	"badger": func(oc OutputConfig) (OutputAdapter, error) {
		return wrap(NewBadgerOutput(oc.Path, batchOrDefault(oc.BatchSize)))
	},
	"sqlite": func(oc OutputConfig) (OutputAdapter, error) {
		return wrap(NewSQLiteOutput(oc.Path))
	},
	"redis": func(oc OutputConfig) (OutputAdapter, error) {
		return wrap(NewRedisOutput(oc.Addr))
	},
	"midi": func(oc OutputConfig) (OutputAdapter, error) {
		return wrap(NewMIDIOutput(oc.Port))
	},
}

func wrap[T OutputAdapter](o T, err error) (OutputAdapter, error) {
	if err != nil {
		return nil, err
	}
	return o, nil
}

func OutputLookup(oc OutputConfig) (OutputAdapter, error) {
	factory, ok := Outputs[oc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown output: %s", oc.Type)
	}
	return factory(oc)
}

func batchOrDefault(n int) int {
	if n <= 0 {
		return 30
	}
	return n
}
