package utils

import (
	"encoding/json"
	"reflect"
)

// Snapshot 将结构体或map转换为JSON形状的map，便于比较
// 指针解引用，时间转为RFC3339字符串，数字统一为float64
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Diff 只保留前后值不同的键；nil值在所在一侧视为不存在
func Diff(before, after map[string]any) (map[string]any, map[string]any) {
	b := Snapshot(before)
	a := Snapshot(after)

	outBefore := map[string]any{}
	outAfter := map[string]any{}

	keys := make(map[string]struct{}, len(b)+len(a))
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range a {
		keys[k] = struct{}{}
	}

	for k := range keys {
		bv, av := b[k], a[k]
		if reflect.DeepEqual(bv, av) {
			continue
		}
		if bv != nil {
			outBefore[k] = bv
		}
		if av != nil {
			outAfter[k] = av
		}
	}
	return outBefore, outAfter
}
