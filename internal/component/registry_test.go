package component

import "testing"

type fsComponent struct {
	mounted   bool
	unmounted bool
}

func (c *fsComponent) Mount() error   { c.mounted = true; return nil }
func (c *fsComponent) Unmount() error { c.unmounted = true; return nil }

func TestRegister_NameOf(t *testing.T) {
	Register[fsComponent]("fs-test-registry")

	name, ok := NameOf[fsComponent]()
	if !ok {
		t.Fatal("expected fsComponent to resolve to a registered name")
	}
	if name != "fs-test-registry" {
		t.Errorf("name = %s, want fs-test-registry", name)
	}
}

func TestRegister_IsRegistered(t *testing.T) {
	type isRegisteredComponent struct{ fsComponent }
	Register[isRegisteredComponent]("fs-test-isregistered")
	if !IsRegistered("fs-test-isregistered") {
		t.Error("expected fs-test-isregistered to be registered")
	}
	if IsRegistered("never-registered-xyz") {
		t.Error("expected an unregistered name to report false")
	}
}

type fsComponentTwo struct {
	fsComponent
}

func TestRegister_DuplicateName_Panics(t *testing.T) {
	type dupNameComponent struct{ fsComponent }
	Register[dupNameComponent]("fs-test-dup-name")

	defer func() {
		if recover() == nil {
			t.Fatal("expected registering a second class under the same name to panic")
		}
	}()
	Register[fsComponentTwo]("fs-test-dup-name")
}

func TestRegister_DuplicateClass_Panics(t *testing.T) {
	type dupClassComponent struct{ fsComponent }
	Register[dupClassComponent]("fs-test-dup-class-a")

	defer func() {
		if recover() == nil {
			t.Fatal("expected registering the same class under a second name to panic")
		}
	}()
	Register[dupClassComponent]("fs-test-dup-class-b")
}

func TestRegisterFactory_LastWriterWins(t *testing.T) {
	RegisterFactory("fs-test-factory", func(opts *ComponentOptions) (Instance, error) {
		return &fsComponent{}, nil
	})

	first, _ := factoryFor("fs-test-factory")
	firstInst, _ := first(&ComponentOptions{name: "fs-test-factory"})
	if _, ok := firstInst.(*fsComponent); !ok {
		t.Fatalf("unexpected instance type %T", firstInst)
	}

	RegisterFactory("fs-test-factory", func(opts *ComponentOptions) (Instance, error) {
		return &fsComponent{mounted: true}, nil
	})
	second, _ := factoryFor("fs-test-factory")
	secondInst, _ := second(&ComponentOptions{name: "fs-test-factory"})
	fc := secondInst.(*fsComponent)
	if !fc.mounted {
		t.Error("expected the later factory registration to take effect")
	}
}
