package config

import "time"

var ParseLevel = parseLevel

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

func NewLLMForTest(provider, model string) *LLM {
	return &LLM{provider: provider, model: model, geminiLocation: "us-central1"}
}

func NewEmbeddingForTest(provider, model string, dimension int, baseURL, apiKey string) *Embedding {
	return &Embedding{
		provider:  provider,
		model:     model,
		dimension: dimension,
		baseURL:   baseURL,
		apiKey:    apiKey,
		timeout:   time.Second,
	}
}

func NewIndexForTest(backend, projectID string, reuse bool) *Index {
	return &Index{backend: backend, projectID: projectID, reuse: reuse}
}

func NewCorpusForTest(dir, gcsBucket string, watch bool) *Corpus {
	return &Corpus{dir: dir, gcsBucket: gcsBucket, watch: watch}
}

func NewPolicyForTest(backend, openfgaURL, storeID, staticFile string) *Policy {
	return &Policy{
		backend:        backend,
		openfgaURL:     openfgaURL,
		openfgaStoreID: storeID,
		staticFile:     staticFile,
		checkTimeout:   time.Second,
	}
}

func NewAgentForTest(maxSteps, retrievalK, overFetch int) *Agent {
	return &Agent{maxSteps: maxSteps, retrievalK: retrievalK, overFetch: overFetch, modelTimeout: time.Second}
}
