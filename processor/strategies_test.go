/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package processor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/pollenrich/api/types"
)

func TestSelectPollMode(t *testing.T) {
	for _, timeout := range []int64{-1000, -1} {
		assert.Equal(t, Unbounded, SelectPollMode(timeout))
	}
	assert.Equal(t, NoWait, SelectPollMode(0))
	for _, timeout := range []int64{1, 500, 1 << 40} {
		assert.Equal(t, Bounded, SelectPollMode(timeout))
	}
	assert.Equal(t, "Bounded", Bounded.String())
	assert.Equal(t, "NoWait", NoWait.String())
	assert.Equal(t, "Unbounded", Unbounded.String())
}

func TestCopyStrategyWithoutResource(t *testing.T) {
	x := types.NewExchangeWithBody(types.InOnly, "x", map[string]interface{}{"h": "v"})
	for i := 0; i < 2; i++ {
		c := x.Copy()
		result, err := CopyStrategy{}.Aggregate(c, nil)
		require.NoError(t, err)
		assert.Same(t, c, result)
		assert.Nil(t, result.In().Body)
		assert.Equal(t, "v", result.In().GetHeader("h"))
	}
	assert.Equal(t, "x", x.In().Body)

	inOut := types.NewExchangeWithBody(types.InOut, "x", nil)
	inOut.Out().Body = "previous"
	result, _ := CopyStrategy{}.Aggregate(inOut, nil)
	assert.False(t, result.HasOut())
}

func TestCopyStrategyWithResource(t *testing.T) {
	r := types.NewExchangeWithBody(types.InOnly, "r", map[string]interface{}{"rh": 1})
	r.SetProperty("p", "rp")
	for _, body := range []interface{}{"x", nil, 42} {
		x := types.NewExchangeWithBody(types.InOnly, body, nil)
		result, err := CopyStrategy{}.Aggregate(x, r)
		require.NoError(t, err)
		assert.Equal(t, "r", result.In().Body)
		assert.Equal(t, 1, result.In().GetHeader("rh"))
		assert.Equal(t, "rp", result.GetProperty("p"))
	}
}

func TestUseOriginalAndUseLatest(t *testing.T) {
	original := types.NewExchangeWithBody(types.InOnly, "o", nil)
	resource := types.NewExchangeWithBody(types.InOnly, "r", nil)

	result, err := UseOriginalStrategy{}.Aggregate(original, resource)
	require.NoError(t, err)
	assert.Same(t, original, result)

	result, err = UseLatestStrategy{}.Aggregate(original, resource)
	require.NoError(t, err)
	assert.Same(t, resource, result)

	result, _ = UseLatestStrategy{}.Aggregate(original, nil)
	assert.Same(t, original, result)

	cause := errors.New("failed before")
	original.SetErr(cause)
	result, _ = UseLatestStrategy{}.Aggregate(original, resource)
	assert.Same(t, cause, result.Err())
}

func TestStringAppendStrategy(t *testing.T) {
	s := &StringAppendStrategy{Delimiter: ","}
	original := types.NewExchangeWithBody(types.InOnly, "a", nil)
	result, err := s.Aggregate(original, types.NewExchangeWithBody(types.InOnly, []byte("b"), nil))
	require.NoError(t, err)
	assert.Equal(t, "a,b", result.In().Body)

	original = types.NewExchangeWithBody(types.InOnly, nil, nil)
	result, _ = s.Aggregate(original, types.NewExchangeWithBody(types.InOnly, 7, nil))
	assert.Equal(t, "7", result.In().Body)

	_, err = s.Aggregate(original, types.NewExchangeWithBody(types.InOnly, struct{}{}, nil))
	assert.Error(t, err)
}

func TestStrategyRegistry(t *testing.T) {
	assert.Equal(t, []string{"copy", "stringappend", "uselatest", "useoriginal"}, Strategies.Names())
	for _, name := range []string{"copy", "useOriginal", "USELATEST", "stringAppend"} {
		_, ok := Strategies.New(name)
		assert.True(t, ok, name)
	}
	assert.Error(t, Strategies.Register("copy", func() types.AggregationStrategy { return CopyStrategy{} }))

	s, err := resolveStrategy(nil)
	require.NoError(t, err)
	assert.IsType(t, CopyStrategy{}, s)
	s, err = resolveStrategy(" ")
	require.NoError(t, err)
	assert.IsType(t, CopyStrategy{}, s)
	s, err = resolveStrategy(func(o, r *types.Exchange) (*types.Exchange, error) { return o, nil })
	require.NoError(t, err)
	assert.IsType(t, types.AggregationStrategyFunc(nil), s)
	_, err = resolveStrategy(42)
	assert.Error(t, err)
}

func TestCopyResultsPreservePattern(t *testing.T) {
	// out of the source lands in the in message of an InOnly result
	result := types.NewExchangeWithBody(types.InOnly, "old", nil)
	source := types.NewExchangeWithBody(types.InOut, "in", nil)
	source.Out().Body = "out"
	copyResultsPreservePattern(result, source)
	assert.Equal(t, "out", result.In().Body)
	assert.False(t, result.HasOut())

	// and in the out message of an InOut result
	result = types.NewExchangeWithBody(types.InOut, "old", nil)
	copyResultsPreservePattern(result, source)
	assert.Equal(t, "in", result.In().Body)
	assert.Equal(t, "out", result.Out().Body)

	// same exchange: InOut gets out = in unless failed
	same := types.NewExchangeWithBody(types.InOut, "body", nil)
	copyResultsPreservePattern(same, same)
	assert.Equal(t, "body", same.Out().Body)
	failed := types.NewExchangeWithBody(types.InOut, "body", nil)
	failed.SetErr(errors.New("failed"))
	copyResultsPreservePattern(failed, failed)
	assert.False(t, failed.HasOut())
}

func TestPrepareAggregation(t *testing.T) {
	original := types.NewExchangeWithBody(types.InOut, "in", nil)
	prepareResult(original)
	require.True(t, original.HasOut())
	original.Out().Body = "out"
	prepareAggregation(original, nil)
	assert.Equal(t, "out", original.In().Body)
	assert.False(t, original.HasOut())

	assert.False(t, ShouldSetVariableResult(original, ""))
	assert.True(t, ShouldSetVariableResult(original, "v"))
	original.SetProperty(types.PropertyVariableResultDisabled, true)
	assert.False(t, ShouldSetVariableResult(original, "v"))
}
