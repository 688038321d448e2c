// Package assignment supplies the test cases of an assignment from a YAML
// directory or from Redis.
package assignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
)

// Store fetches the test cases of an assignment
type Store = evaluation.TestCaseStore

// Assignment is the stored document of an assignment
type Assignment struct {
	ID        string                `yaml:"id,omitempty" json:"id,omitempty"`
	TestCases []evaluation.TestCase `yaml:"test_cases" json:"test_cases"`
}

func decode(id string, b []byte) ([]evaluation.TestCase, error) {
	var a Assignment
	if err := yaml.Unmarshal(b, &a); err != nil {
		return nil, apperr.Internal(err, "assignment %s is malformed", id)
	}
	if len(a.TestCases) == 0 {
		return nil, notFound(id)
	}
	return a.TestCases, nil
}

func notFound(id string) error {
	return apperr.NotFound("No test cases found for assignment %s", id)
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return apperr.Validation("Invalid assignment id %q", id)
	}
	return nil
}

// chain tries stores in order, a store without the assignment passes to the
// next one
type chain []Store

// Chain returns a store querying stores in order
func Chain(stores ...Store) Store {
	if len(stores) == 1 {
		return stores[0]
	}
	return chain(stores)
}

func (c chain) FetchTestCases(ctx context.Context, id string) ([]evaluation.TestCase, error) {
	if len(c) == 0 {
		return nil, notFound(id)
	}
	var lastErr error
	for _, s := range c {
		tcs, err := s.FetchTestCases(ctx, id)
		if err == nil {
			return tcs, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, fmt.Errorf("fetch test cases: %w", err)
		}
		lastErr = err
	}
	return nil, lastErr
}
