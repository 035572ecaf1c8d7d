// tflite.go TensorFlow Lite implementation of the Scorer collaborator
package classifier

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/errors"
	tflite "github.com/tphakala/go-tflite"
)

// numClasses is the expected classifier head size: singlet and doublet.
const numClasses = 2

// TFLite runs the trained solo classifier through a TensorFlow Lite
// interpreter. One interpreter serves all cells, so predict serializes
// inference with a mutex; the interpreter itself parallelizes across
// its configured threads.
type TFLite struct {
	interpreter *tflite.Interpreter
	settings    conf.ClassifierSettings
	inputSize   int
	mu          sync.Mutex
}

// NewTFLite loads the model file and prepares an interpreter for it.
func NewTFLite(settings conf.ClassifierSettings) (*TFLite, error) {
	start := time.Now()

	if settings.ModelPath == "" {
		return nil, errors.Newf("classifier: no model path configured").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	modelData, err := os.ReadFile(settings.ModelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryFileIO).
			ModelContext(settings.ModelPath, "").
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(settings.ModelPath, "").
			Context("model_size_kb", len(modelData)/1024).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(determineThreadCount(settings.Threads))
	options.SetErrorReporter(func(msg string, userData any) {
		GetLogger().Error("TFLite error", "message", msg)
	}, nil)

	c := &TFLite{settings: settings}
	c.interpreter = tflite.NewInterpreter(model, options)
	if c.interpreter == nil {
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(settings.ModelPath, "").
			Build()
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(settings.ModelPath, "").
			Build()
	}

	if err := c.validateModel(); err != nil {
		return nil, err
	}

	// TFLite keeps its own copy of the model data.
	runtime.GC()

	GetLogger().Info("classifier model initialized",
		"model", settings.ModelPath,
		"input_size", c.inputSize,
		"threads", determineThreadCount(settings.Threads))
	return c, nil
}

// validateModel checks the output head is a two class singlet/doublet pair
// and records the expected input width.
func (c *TFLite) validateModel() error {
	outputTensor := c.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return errors.Newf("cannot get output tensor from model").
			Component("classifier").
			Category(errors.CategoryValidation).
			ModelContext(c.settings.ModelPath, "").
			Build()
	}
	outputSize := outputTensor.Dim(outputTensor.NumDims() - 1)
	if outputSize != numClasses {
		return errors.Newf("model head mismatch: expected %d classes, model has %d", numClasses, outputSize).
			Component("classifier").
			Category(errors.CategoryValidation).
			ModelContext(c.settings.ModelPath, "").
			Context("output_size", outputSize).
			Build()
	}

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return errors.Newf("cannot get input tensor from model").
			Component("classifier").
			Category(errors.CategoryValidation).
			ModelContext(c.settings.ModelPath, "").
			Build()
	}
	c.inputSize = inputTensor.Dim(inputTensor.NumDims() - 1)
	return nil
}

// Score runs inference over every input cell and returns one logit pair per
// cell, in input order. Progress is logged once per configured batch.
func (c *TFLite) Score(ctx context.Context, inputs [][]float32) ([]LogitPair, error) {
	batchSize := c.settings.BatchSize
	if batchSize <= 0 {
		batchSize = 128
	}

	pairs := make([]LogitPair, 0, len(inputs))
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("classifier").
				Category(errors.CategoryGeneric).
				Context("scored_cells", i).
				Build()
		}
		pair, err := c.predict(input)
		if err != nil {
			return nil, errors.Wrap(err).Context("cell_index", i).Build()
		}
		pairs = append(pairs, pair)

		if (i+1)%batchSize == 0 {
			GetLogger().Debug("scoring progress", "scored", i+1, "total", len(inputs))
		}
	}
	return pairs, nil
}

// predict runs a single cell through the interpreter.
func (c *TFLite) predict(input []float32) (LogitPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(input) != c.inputSize {
		return LogitPair{}, errors.Newf("input width %d does not match model input %d", len(input), c.inputSize).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return LogitPair{}, errors.Newf("cannot get input tensor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	copy(inputTensor.Float32s(), input)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return LogitPair{}, errors.Newf("tensor invoke failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	outputTensor := c.interpreter.GetOutputTensor(0)
	logits := make([]float32, numClasses)
	copy(logits, outputTensor.Float32s())

	return LogitPair{Singlet: float64(logits[0]), Doublet: float64(logits[1])}, nil
}

// Delete releases the interpreter resources.
func (c *TFLite) Delete() {
	if c.interpreter != nil {
		c.interpreter.Delete()
	}
}

// determineThreadCount bounds the configured thread count by the CPU count,
// using all CPUs when unset.
func determineThreadCount(configured int) int {
	systemCPUCount := runtime.NumCPU()
	if configured <= 0 || configured > systemCPUCount {
		return systemCPUCount
	}
	return configured
}
