package resolver

import (
	"encoding/json"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/samber/mo"
)

// Value is the success side of a Result: either one instance or a list.
// Connectors keep the vendor's shape; a query by id may return either.
type Value struct {
	single *instance.Instance
	list   []instance.Instance
	isList bool
}

// Result is what every public CRUD operation returns.
type Result = mo.Result[Value]

func One(inst instance.Instance) Result {
	return mo.Ok(Value{single: &inst})
}

func Many(list []instance.Instance) Result {
	if list == nil {
		list = []instance.Instance{}
	}
	return mo.Ok(Value{list: list, isList: true})
}

// Fail converts err into an error Result carrying *Error.
func Fail(err error) Result {
	if err == nil {
		err = Validationf("unknown failure")
	}
	return mo.Err[Value](AsError(err))
}

func (v Value) IsList() bool { return v.isList }

// Instance returns the single instance. ok is false for lists.
func (v Value) Instance() (instance.Instance, bool) {
	if v.isList || v.single == nil {
		return instance.Instance{}, false
	}
	return *v.single, true
}

// Instances returns the list, or the single instance as a one-element list.
func (v Value) Instances() []instance.Instance {
	if v.isList {
		return v.list
	}
	if v.single == nil {
		return nil
	}
	return []instance.Instance{*v.single}
}

type errorPayload struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// Payload returns the JSON-ready form of r: an instance, a list of instances,
// or {"result":"error","message":...}.
func Payload(r Result) any {
	if r.IsError() {
		e := AsError(r.Error())
		return errorPayload{
			Result:  "error",
			Message: e.Error(),
			Kind:    e.Kind,
			Code:    e.Code,
			Status:  e.Status,
		}
	}
	v := r.MustGet()
	if v.isList {
		return v.list
	}
	if v.single == nil {
		return nil
	}
	return *v.single
}

func MarshalResult(r Result) ([]byte, error) {
	return json.Marshal(Payload(r))
}

// ErrorOf returns the *Error of a failed result, or nil.
func ErrorOf(r Result) *Error {
	if !r.IsError() {
		return nil
	}
	return AsError(r.Error())
}

// Deleted is the success value of a delete: the entity's id and deleted=true.
func Deleted(namespace, entityType, id string) Result {
	return One(instance.Make(namespace, entityType, instance.Attributes{"id": id, "deleted": true}))
}
