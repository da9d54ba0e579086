package node

import (
	"fmt"
	"slices"

	"github.com/nasdf/docproxy/fieldop"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Build returns a new node containing the given go value.
func Build(value any) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := Assign(value, nb); err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

// Assign assembles the given go value into the node assembler.
//
// Map entries are assembled in sorted key order so that equal values always
// produce equal encodings.
func Assign(value any, na datamodel.NodeAssembler) error {
	switch v := value.(type) {
	case nil:
		return na.AssignNull()
	case bool:
		return na.AssignBool(v)
	case string:
		return na.AssignString(v)
	case []byte:
		return na.AssignBytes(v)
	case int64:
		return na.AssignInt(v)
	case float64:
		return na.AssignFloat(v)
	case []any:
		return assignList(v, na)
	case map[string]any:
		return assignMap(v, na)
	}
	n, ok := fieldop.Number(value)
	if !ok {
		return fmt.Errorf("cannot assign value of type %T", value)
	}
	return Assign(n, na)
}

func assignList(value []any, na datamodel.NodeAssembler) error {
	la, err := na.BeginList(int64(len(value)))
	if err != nil {
		return err
	}
	for _, v := range value {
		if err := Assign(v, la.AssembleValue()); err != nil {
			return err
		}
	}
	return la.Finish()
}

func assignMap(value map[string]any, na datamodel.NodeAssembler) error {
	ma, err := na.BeginMap(int64(len(value)))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ea, err := ma.AssembleEntry(k)
		if err != nil {
			return err
		}
		if err := Assign(value[k], ea); err != nil {
			return err
		}
	}
	return ma.Finish()
}

// Value returns the go value for the given node.
func Value(n datamodel.Node) (any, error) {
	switch n.Kind() {
	case datamodel.Kind_Bool:
		return n.AsBool()
	case datamodel.Kind_Bytes:
		return n.AsBytes()
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_Int:
		return n.AsInt()
	case datamodel.Kind_String:
		return n.AsString()
	case datamodel.Kind_List:
		return ListValue(n)
	case datamodel.Kind_Map:
		return MapValue(n)
	case datamodel.Kind_Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot get value from %s", n.Kind().String())
	}
}

// MapValue returns a go map containing the values in the given node.
func MapValue(n datamodel.Node) (map[string]any, error) {
	out := make(map[string]any, n.Length())
	for iter := n.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		key, err := k.AsString()
		if err != nil {
			return nil, err
		}
		val, err := Value(v)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

// ListValue returns a go slice containing the values in the given node.
func ListValue(n datamodel.Node) ([]any, error) {
	out := make([]any, n.Length())
	for iter := n.ListIterator(); !iter.Done(); {
		i, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		val, err := Value(v)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}
