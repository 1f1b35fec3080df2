package checks

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"

	"github.com/osbits/fcheck/internal/config"
)

// evaluateExpectations checks an action's output against its expect list.
func evaluateExpectations(output string, expect []config.Assertion) ([]AssertionResult, bool) {
	var (
		jsonBody interface{}
		jsonErr  error
		parsed   bool
	)

	results := make([]AssertionResult, 0, len(expect))
	for _, assertion := range expect {
		result := AssertionResult{
			Kind: assertion.Kind,
			Op:   assertion.Op,
			Path: assertion.Path,
		}
		switch strings.ToLower(assertion.Kind) {
		case "contains":
			expectStr := fmt.Sprintf("%v", assertion.Value)
			found := strings.Contains(output, expectStr)
			if strings.ToLower(assertion.Op) == "not_contains" {
				result.Passed = !found
				if !result.Passed {
					result.Message = fmt.Sprintf("output contains %q", expectStr)
				}
			} else {
				result.Passed = found
				if !result.Passed {
					result.Message = fmt.Sprintf("string %q not found in output", expectStr)
				}
			}
		case "regex":
			expectStr := fmt.Sprintf("%v", assertion.Value)
			rx, err := regexp.Compile(expectStr)
			if err != nil {
				result.Message = fmt.Sprintf("invalid regex %q: %v", expectStr, err)
				break
			}
			result.Passed = rx.MatchString(output)
			if !result.Passed {
				result.Message = "regex did not match output"
			}
		case "jsonpath":
			if !parsed {
				parsed = true
				jsonErr = json.Unmarshal([]byte(output), &jsonBody)
			}
			if jsonErr != nil {
				result.Message = fmt.Sprintf("parse json: %v", jsonErr)
				break
			}
			val, err := jsonpath.JsonPathLookup(jsonBody, assertion.Path)
			op := strings.ToLower(assertion.Op)
			switch {
			case op == "exists":
				result.Passed = err == nil && val != nil
				if !result.Passed {
					result.Message = "jsonpath value does not exist"
				}
			case err != nil:
				result.Message = fmt.Sprintf("jsonpath lookup: %v", err)
			default:
				result.Passed = compareValues(val, assertion.Value, op)
				if !result.Passed {
					result.Message = fmt.Sprintf("jsonpath value mismatch: got %v", val)
				}
			}
		default:
			result.Message = fmt.Sprintf("unsupported assertion %q", assertion.Kind)
		}
		results = append(results, result)
	}
	return results, allPassed(results)
}

func allPassed(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func compareValues(actual, expected interface{}, op string) bool {
	switch op {
	case "", "equals", "equal", "==":
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
	case "not_equals", "!=":
		return fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected)
	default:
		return false
	}
}
