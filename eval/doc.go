// Package eval provides a batch evaluation harness for agents.
//
// A Task pairs a Dataset of samples with the agent under evaluation and a
// Scorer. Run executes the samples with bounded parallelism, giving each
// sample an isolated session, store, transcript and limit budget, then
// aggregates per-sample scores and usage into Results.
//
// Datasets load from YAML files or are built in code. Built-in scorers
// cover exact-match and substring-inclusion grading; custom scorers
// implement the Scorer interface.
package eval
