// Package stream sequences reads and writes of whole values, including
// nested tables, over one Lua stack.
//
// A Writer produces values. Writes outside a table push top-level values;
// inside a table they append positional elements, or keyed ones after Key:
//
//	w := stream.NewWriter(h)
//	w.BeginTable().Key("name").String("x")
//	sub := stream.NewWriter(h)
//	sub.BeginTable().Int(1).Int(2).EndTable()
//	w.InsertSubtable(sub)
//	w.Number(9.5).EndTable()
//
// A Reader consumes one slot. Over a table it iterates elements; ReadKey
// reads by name; nested tables are read with a child Reader opened over
// the top of the stack and handed back with CleanupSubtable:
//
//	r := stream.NewReader(h, -1)
//	defer r.Close()
//	r.ReadKey("name").String(&name)
//	if r.IsSubtable() {
//		sub := stream.NewReader(h, -1)
//		sub.Int(&a)
//		r.CleanupSubtable(sub)
//	}
//
// Type mismatches only set the reader's bad flag and leave the destination
// unchanged. Protocol misuse is a contract violation reported through the
// stack.Handle and the cursor's Err.
//
// Encode, Decode, Marshal and Unmarshal map Go composites onto tables by
// reflection: slices and arrays positionally, maps and structs by key.
// Types implementing Marshaler or Unmarshaler control their own layout.
package stream
