package simdjson

import "testing"

func TestODParser_Scalars(t *testing.T) {
	p, err := NewODParser([]byte(`42`))
	if err != nil {
		t.Fatal(err)
	}
	v := p.Iter()
	n, err := v.Int()
	if err != nil {
		t.Fatal(err)
	}
	if n != 42 {
		t.Errorf("Int() = %d, want 42", n)
	}
}

func TestODObject_NextField(t *testing.T) {
	p, err := NewODParser([]byte(`{"a":1,"b":"two","c":[1,2,3],"d":{"e":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	root := p.Iter()
	obj, err := root.GetObject()
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	for {
		key, val, err := obj.NextField()
		if err != nil {
			t.Fatal(err)
		}
		if val == nil {
			break
		}
		keys = append(keys, key)
		switch key {
		case "a":
			n, err := val.Int()
			if err != nil || n != 1 {
				t.Errorf("a: Int() = %d, %v", n, err)
			}
		case "b":
			s, err := val.String()
			if err != nil || s != "two" {
				t.Errorf("b: String() = %q, %v", s, err)
			}
		case "c":
			arr, err := val.GetArray()
			if err != nil {
				t.Fatal(err)
			}
			var got []int64
			for {
				elem, err := arr.Next()
				if err != nil {
					t.Fatal(err)
				}
				if elem == nil {
					break
				}
				n, err := elem.Int()
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, n)
			}
			if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
				t.Errorf("c: got %v", got)
			}
		case "d":
			if err := val.Skip(); err != nil {
				t.Fatal(err)
			}
		}
	}
	want := []string{"a", "b", "c", "d"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestODObject_FindField(t *testing.T) {
	p, err := NewODParser([]byte(`{"a":1,"b":2,"c":3}`))
	if err != nil {
		t.Fatal(err)
	}
	root := p.Iter()
	obj, err := root.GetObject()
	if err != nil {
		t.Fatal(err)
	}
	val, err := obj.FindField("c")
	if err != nil {
		t.Fatal(err)
	}
	n, err := val.Int()
	if err != nil || n != 3 {
		t.Errorf("FindField(c) = %d, %v", n, err)
	}
	if _, err := obj.FindField("a"); err == nil {
		t.Errorf("FindField(a) after passing it should fail (forward-only)")
	}
}

func TestODObject_FindFieldUnordered(t *testing.T) {
	p, err := NewODParser([]byte(`{"a":1,"b":2,"c":3}`))
	if err != nil {
		t.Fatal(err)
	}
	root := p.Iter()
	obj, err := root.GetObject()
	if err != nil {
		t.Fatal(err)
	}
	// Ask for "a" after having implicitly started iteration mid-object via an
	// out-of-order lookup first, forcing the wraparound path.
	val, err := obj.FindFieldUnordered("c")
	if err != nil {
		t.Fatal(err)
	}
	if n, err := val.Int(); err != nil || n != 3 {
		t.Errorf("c = %d, %v", n, err)
	}
	val, err = obj.FindFieldUnordered("a")
	if err != nil {
		t.Fatal(err)
	}
	if n, err := val.Int(); err != nil || n != 1 {
		t.Errorf("a = %d, %v", n, err)
	}
	if _, err := obj.FindFieldUnordered("nope"); err == nil {
		t.Errorf("FindFieldUnordered(nope) should fail")
	}
}

func TestODObject_OutOfOrderIteration(t *testing.T) {
	p, err := NewODParser([]byte(`{"a":{"x":1},"b":2}`))
	if err != nil {
		t.Fatal(err)
	}
	root := p.Iter()
	obj, err := root.GetObject()
	if err != nil {
		t.Fatal(err)
	}
	_, val, err := obj.NextField()
	if err != nil {
		t.Fatal(err)
	}
	inner, err := val.GetObject()
	if err != nil {
		t.Fatal(err)
	}
	// obj is no longer the active handle: using it now must fail instead of
	// silently reading stale state.
	if _, _, err := obj.NextField(); err == nil {
		t.Errorf("NextField on a suspended object should fail while a child is active")
	}
	if _, _, err := inner.NextField(); err != nil {
		t.Fatal(err)
	}
}
