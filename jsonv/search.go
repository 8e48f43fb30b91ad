package jsonv

import (
	"iter"

	"github.com/xeptore/spotstat/iterutil"
)

// frame is a container whose children are still being visited. Exactly one
// of members and elems is set.
type frame struct {
	members Object
	elems   Array
	next    int
}

func frameOf(v Value) frame {
	return frame{members: v.obj, elems: v.arr, next: 0}
}

// Search yields every value stored under key at any depth of root, walking
// the document depth-first in member and element order.
//
// A matching member's value is yielded before the walk descends into it, so
// searching {"a": {"a": 1}} for "a" yields {"a": 1} and then 1.
//
// The sequence is lazy: the walk advances only as far as needed to produce the
// next match and stops as soon as the consumer stops ranging. Scalars and
// invalid values yield nothing. The walk keeps its own stack, so document
// depth is not bounded by the goroutine stack.
func Search(root Value, key string) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		if !root.kind.IsContainer() {
			return
		}

		stack := []frame{frameOf(root)}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			var child Value
			switch {
			case top.next < len(top.members):
				m := top.members[top.next]
				top.next++
				if m.Key == key && !yield(m.Value) {
					return
				}
				child = m.Value
			case top.next < len(top.elems):
				child = top.elems[top.next]
				top.next++
			default:
				stack = stack[:len(stack)-1]
				continue
			}

			if child.kind.IsContainer() {
				stack = append(stack, frameOf(child))
			}
		}
	}
}

// First returns the first value Search would yield. The boolean is false
// when key occurs nowhere in root.
func First(root Value, key string) (Value, bool) {
	return iterutil.First(Search(root, key))
}

// SearchStrings is Search restricted to string matches.
func SearchStrings(root Value, key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for v := range Search(root, key) {
			s, ok := v.AsString()
			if !ok {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}
