package hashengine

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/tos-network/tos-miner/internal/util"
)

// ErrBackendUnavailable wraps the reason a requested CPU backend cannot be
// used (not supported by the running CPU, or an unknown instruction set).
// Select logs it as a warning and falls back to scalar; it never returns it.
var ErrBackendUnavailable = fmt.Errorf("requested verifier backend unavailable")

// Select resolves the configured processorType/instructionSet into a
// concrete Backend, falling back to scalar with a visible warning if the
// requested backend cannot be used. processorType is one of CPU/CUDA/OPENCL
// (case-insensitive); instructionSet is one of
// AUTO/SSE2/SSE4/AVX/AVX2/NEON/SCALAR.
func Select(processorType, instructionSet string) Backend {
	switch strings.ToUpper(processorType) {
	case "CUDA", "OPENCL":
		// Neither backend is compiled into this build; see DESIGN.md for
		// why no GPU binding is wired from the available dependency set.
		util.Warnf("processor type %q is not compiled into this build, falling back to scalar", processorType)
		return ScalarBackend{}
	}

	backend, err := selectCPU(instructionSet)
	if err != nil {
		util.Warnf("%v, falling back to scalar", err)
		return ScalarBackend{}
	}
	return backend
}

func selectCPU(instructionSet string) (Backend, error) {
	switch strings.ToUpper(instructionSet) {
	case "", "AUTO":
		return widestAvailable(), nil
	case "AVX2":
		if !cpuid.CPU.Supports(cpuid.AVX2) {
			return nil, fmt.Errorf("%w: AVX2 not supported by this CPU", ErrBackendUnavailable)
		}
		return AVX2Backend(), nil
	case "AVX":
		if !cpuid.CPU.Supports(cpuid.AVX) {
			return nil, fmt.Errorf("%w: AVX not supported by this CPU", ErrBackendUnavailable)
		}
		return AVXBackend(), nil
	case "SSE4":
		if !cpuid.CPU.Supports(cpuid.SSE4) {
			return nil, fmt.Errorf("%w: SSE4 not supported by this CPU", ErrBackendUnavailable)
		}
		return SSE4Backend(), nil
	case "SSE2":
		if !cpuid.CPU.Supports(cpuid.SSE2) {
			return nil, fmt.Errorf("%w: SSE2 not supported by this CPU", ErrBackendUnavailable)
		}
		return SSE2Backend(), nil
	case "NEON":
		if !cpuid.CPU.Supports(cpuid.ASIMD) {
			return nil, fmt.Errorf("%w: NEON not supported by this CPU", ErrBackendUnavailable)
		}
		return NEONBackend(), nil
	case "SCALAR":
		return ScalarBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown instruction set %q", ErrBackendUnavailable, instructionSet)
	}
}

// widestAvailable picks the widest instruction set the running CPU
// supports, among {AVX2, AVX, SSE4, SSE2, NEON}.
func widestAvailable() Backend {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX2):
		return AVX2Backend()
	case cpuid.CPU.Supports(cpuid.AVX):
		return AVXBackend()
	case cpuid.CPU.Supports(cpuid.SSE4):
		return SSE4Backend()
	case cpuid.CPU.Supports(cpuid.ASIMD):
		return NEONBackend()
	case cpuid.CPU.Supports(cpuid.SSE2):
		return SSE2Backend()
	default:
		return ScalarBackend{}
	}
}
