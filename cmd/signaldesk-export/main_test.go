package main

import (
	"reflect"
	"testing"
)

func TestSplitUsers(t *testing.T) {
	got := splitUsers(" alice, @bob,,carol ,@ ")
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitUsers = %v, want %v", got, want)
	}
}
