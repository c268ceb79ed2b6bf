package tomi

import "testing"

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	cases := []struct {
		questionType string
		requiresTom  bool
		tomOrder     *int
		baseType     string
	}{
		{"memory", false, nil, "memory"},
		{"reality", false, nil, "reality"},
		{"first_order_0_tom", true, intPtr(1), "first_order_0"},
		{"first_order_0_no_tom", false, intPtr(1), "first_order_0"},
		{"first_order_1_tom", true, intPtr(1), "first_order_1"},
		{"first_order_1_no_tom", false, intPtr(1), "first_order_1"},
		{"second_order_0_tom", true, intPtr(2), "second_order_0"},
		{"second_order_1_no_tom", false, intPtr(2), "second_order_1"},
		{"exotic_type_tom", true, nil, "exotic_type_tom"},
		{"exotic_type", false, nil, "exotic_type"},
	}
	for _, tc := range cases {
		t.Run(tc.questionType, func(t *testing.T) {
			got := Classify(tc.questionType)
			if got.RequiresTom != tc.requiresTom {
				t.Fatalf("RequiresTom = %v, want %v", got.RequiresTom, tc.requiresTom)
			}
			if (got.TomOrder == nil) != (tc.tomOrder == nil) {
				t.Fatalf("TomOrder = %v, want %v", got.TomOrder, tc.tomOrder)
			}
			if got.TomOrder != nil && *got.TomOrder != *tc.tomOrder {
				t.Fatalf("TomOrder = %d, want %d", *got.TomOrder, *tc.tomOrder)
			}
			if got.BaseType != tc.baseType {
				t.Fatalf("BaseType = %q, want %q", got.BaseType, tc.baseType)
			}
		})
	}
}

func TestClassifyControlsNeverRequireTom(t *testing.T) {
	for _, control := range []string{"memory", "reality"} {
		got := Classify(control)
		if got.RequiresTom || got.TomOrder != nil {
			t.Fatalf("control %q classified as ToM: %+v", control, got)
		}
		if !IsControl(got.BaseType) {
			t.Fatalf("IsControl(%q) = false", got.BaseType)
		}
	}
	if IsControl("first_order_0") {
		t.Fatal("first_order_0 is not a control type")
	}
}
