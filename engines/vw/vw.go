// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build vw_native && cgo

package vw

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef void* VW_HANDLE;
typedef void* VW_EXAMPLE;

typedef struct {
	VW_HANDLE (*initialize)(const char*);
	void (*finish)(VW_HANDLE);
	VW_EXAMPLE (*read_example)(VW_HANDLE, const char*);
	void (*finish_example)(VW_HANDLE, VW_EXAMPLE);
	float (*predict)(VW_HANDLE, VW_EXAMPLE);
	float (*learn)(VW_HANDLE, VW_EXAMPLE);
	float (*cost_sensitive_prediction)(VW_EXAMPLE);
	float (*action_score)(VW_EXAMPLE, size_t);
	size_t (*action_score_length)(VW_EXAMPLE);
	uint32_t* (*multilabel_predictions)(VW_HANDLE, VW_EXAMPLE, size_t*);
} vw_api;

static vw_api api;

#define VW_SYM(field, name) \
	api.field = dlsym(lib, name); \
	if (api.field == NULL) { return dlerror(); }

// vw_load returns NULL on success, or the dlerror() message.
static const char* vw_load(const char* path) {
	void* lib = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	if (lib == NULL) {
		return dlerror();
	}
	VW_SYM(initialize, "VW_InitializeA");
	VW_SYM(finish, "VW_Finish");
	VW_SYM(read_example, "VW_ReadExampleA");
	VW_SYM(finish_example, "VW_FinishExample");
	VW_SYM(predict, "VW_Predict");
	VW_SYM(learn, "VW_Learn");
	VW_SYM(cost_sensitive_prediction, "VW_GetCostSensitivePrediction");
	VW_SYM(action_score, "VW_GetActionScore");
	VW_SYM(action_score_length, "VW_GetActionScoreLength");
	VW_SYM(multilabel_predictions, "VW_GetMultilabelPredictions");
	return NULL;
}

static VW_HANDLE vw_initialize(const char* args) { return api.initialize(args); }
static void vw_finish(VW_HANDLE h) { api.finish(h); }
static VW_EXAMPLE vw_read_example(VW_HANDLE h, const char* line) { return api.read_example(h, line); }
static void vw_finish_example(VW_HANDLE h, VW_EXAMPLE e) { api.finish_example(h, e); }
static float vw_run(VW_HANDLE h, VW_EXAMPLE e, int learn) {
	return learn ? api.learn(h, e) : api.predict(h, e);
}
static float vw_cost_sensitive_prediction(VW_EXAMPLE e) { return api.cost_sensitive_prediction(e); }
static float vw_action_score(VW_EXAMPLE e, size_t i) { return api.action_score(e, i); }
static size_t vw_action_score_length(VW_EXAMPLE e) { return api.action_score_length(e); }
static uint32_t* vw_multilabel_predictions(VW_HANDLE h, VW_EXAMPLE e, size_t* n) {
	return api.multilabel_predictions(h, e, n);
}
*/
import "C"
import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/engines/vwargs"
	"github.com/gomlx/vwlearners/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Available reports whether the binding was compiled in.
const Available = true

func init() {
	engines.Register(EngineName, New)
}

var (
	muLibraryPath sync.Mutex
	libraryPath   string

	loaded     atomic.Bool
	loadedPath string

	// libraryLoader loads the VW library at most once per process. A failure is permanent.
	libraryLoader = engines.OnceLoader(func() error {
		muLibraryPath.Lock()
		configured := libraryPath
		muLibraryPath.Unlock()
		path, err := FindLibrary(configured)
		if err != nil {
			return err
		}
		cPath := C.CString(path)
		defer C.free(unsafe.Pointer(cPath))
		if cErr := C.vw_load(cPath); cErr != nil {
			return errors.Errorf("failed to load VW library from %q: %s", path, C.GoString(cErr))
		}
		loadedPath = path
		loaded.Store(true)
		klog.V(1).Infof("Loaded VW library from %q", path)
		return nil
	})
)

// New returns the "vw" engine. If config is not empty, it's the path to the VW library to load,
// and it's only used if the library has not been loaded yet.
func New(config string) (engines.Engine, error) {
	if config != "" {
		if loaded.Load() {
			if config != loadedPath {
				klog.Warningf("VW library already loaded from %q, ignoring %q", loadedPath, config)
			}
		} else {
			muLibraryPath.Lock()
			libraryPath = config
			muLibraryPath.Unlock()
		}
	}
	return &Engine{}, nil
}

// Engine implements engines.Engine and engines.Loader over the native VW library.
//
// The native library is shared by all Engine objects.
type Engine struct {
	learners xsync.SyncMap[engines.Handle, *learner]
}

var (
	_ engines.Engine = &Engine{}
	_ engines.Loader = &Engine{}
)

type learner struct {
	vw    C.VW_HANDLE
	shape engines.ShapeTag
}

// Name implements engines.Engine.
func (e *Engine) Name() string { return EngineName }

// Load implements engines.Loader.
func (e *Engine) Load() error { return libraryLoader.Load() }

// Create implements engines.Engine. It returns engines.ErrNotLoaded if Load has not succeeded yet.
//
// The handle is the address of the native learner.
func (e *Engine) Create(command string) (engines.Handle, error) {
	if !loaded.Load() {
		return engines.InvalidHandle, errors.Wrapf(engines.ErrNotLoaded, "engine %q", EngineName)
	}
	args, err := vwargs.Parse(command)
	if err != nil {
		return engines.InvalidHandle, err
	}
	cCommand := C.CString(command)
	defer C.free(unsafe.Pointer(cCommand))
	vw := C.vw_initialize(cCommand)
	if vw == nil {
		return engines.InvalidHandle, errors.Errorf("VW failed to initialize with command %q", command)
	}
	handle := engines.Handle(uintptr(unsafe.Pointer(vw)))
	e.learners.Store(handle, &learner{vw: vw, shape: args.Shape()})
	return handle, nil
}

func (e *Engine) get(handle engines.Handle) (*learner, error) {
	l, found := e.learners.Load(handle)
	if !found {
		return nil, errors.Wrapf(engines.ErrUnknownHandle, "VW handle %d", handle)
	}
	return l, nil
}

// OutputShape implements engines.Engine.
func (e *Engine) OutputShape(handle engines.Handle) (engines.ShapeTag, error) {
	l, err := e.get(handle)
	if err != nil {
		return engines.ShapeUnknown, err
	}
	return l.shape, nil
}

// Release implements engines.Engine. VW writes the final regressor (-f), if configured, during release.
func (e *Engine) Release(handle engines.Handle) error {
	l, found := e.learners.LoadAndDelete(handle)
	if !found {
		return errors.Wrapf(engines.ErrUnknownHandle, "VW handle %d", handle)
	}
	C.vw_finish(l.vw)
	return nil
}

// run parses the example, runs it through the learner and calls read with the processed example,
// before finishing it.
func (e *Engine) run(handle engines.Handle, shape engines.ShapeTag, example string, learn bool,
	read func(l *learner, ex C.VW_EXAMPLE, score float32)) error {
	l, err := e.get(handle)
	if err != nil {
		return err
	}
	if l.shape != shape {
		return errors.Wrapf(engines.ErrWrongShape, "VW handle %d is %s, not %s", handle, l.shape, shape)
	}
	cExample := C.CString(example)
	defer C.free(unsafe.Pointer(cExample))
	ex := C.vw_read_example(l.vw, cExample)
	if ex == nil {
		return errors.Errorf("VW failed to parse example %q", example)
	}
	defer C.vw_finish_example(l.vw, ex)
	var cLearn C.int
	if learn {
		cLearn = 1
	}
	score := float32(C.vw_run(l.vw, ex, cLearn))
	read(l, ex, score)
	return nil
}

// PredictFloat implements engines.Engine.
func (e *Engine) PredictFloat(handle engines.Handle, example string, learn bool) (value float32, err error) {
	err = e.run(handle, engines.ShapeScalarFloat, example, learn, func(_ *learner, _ C.VW_EXAMPLE, score float32) {
		value = score
	})
	return
}

// PredictInt implements engines.Engine.
func (e *Engine) PredictInt(handle engines.Handle, example string, learn bool) (value int32, err error) {
	err = e.run(handle, engines.ShapeScalarInt, example, learn, func(_ *learner, ex C.VW_EXAMPLE, _ float32) {
		value = int32(C.vw_cost_sensitive_prediction(ex))
	})
	return
}

// PredictFloats implements engines.Engine.
func (e *Engine) PredictFloats(handle engines.Handle, example string, learn bool) (values []float32, err error) {
	err = e.run(handle, engines.ShapeFloatSequence, example, learn, func(_ *learner, ex C.VW_EXAMPLE, _ float32) {
		n := int(C.vw_action_score_length(ex))
		values = make([]float32, n)
		for i := range n {
			values[i] = float32(C.vw_action_score(ex, C.size_t(i)))
		}
	})
	return
}

// PredictInts implements engines.Engine.
func (e *Engine) PredictInts(handle engines.Handle, example string, learn bool) (values []int32, err error) {
	err = e.run(handle, engines.ShapeIntSequence, example, learn, func(l *learner, ex C.VW_EXAMPLE, _ float32) {
		var n C.size_t
		labels := C.vw_multilabel_predictions(l.vw, ex, &n)
		values = make([]int32, int(n))
		if n > 0 && labels != nil {
			for i, label := range unsafe.Slice((*uint32)(unsafe.Pointer(labels)), int(n)) {
				values[i] = int32(label)
			}
		}
	})
	return
}
