package main

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/xdlms"
)

// objectKey addresses one attribute the way AttributeDescriptor does,
// minus the selective-access part a registry lookup never needs.
type objectKey struct {
	classID   uint16
	instance  xdlms.Obis
	attribute int8
}

// registry is a minimal in-memory logical device object store: enough to
// answer Get/Set/Action against a clock object and a handful of
// registers, not a full COSEM object model.
type registry struct {
	clock  clock.Clock
	values map[objectKey]axdr.Value
}

func newRegistry(c clock.Clock) *registry {
	r := &registry{clock: c, values: make(map[objectKey]axdr.Value)}
	r.set(3, mustObis("1.0.1.8.0.255"), 2, axdr.Value{Tag: axdr.TagDoubleLongUnsigned, Value: uint64(0)})
	r.set(1, mustObis("0.0.96.1.0.255"), 2, axdr.Value{Tag: axdr.TagOctetString, Value: []byte("00000000")})
	return r
}

func mustObis(s string) xdlms.Obis {
	o, err := xdlms.ParseObis(s)
	if err != nil {
		panic(err)
	}
	return o
}

func (r *registry) set(classID uint16, instance xdlms.Obis, attribute int8, v axdr.Value) {
	r.values[objectKey{classID, instance, attribute}] = v
}

// get answers one AttributeDescriptor, computing the clock object's time
// attribute (class 8, attribute 2) live rather than from the store.
func (r *registry) get(d xdlms.AttributeDescriptor) (axdr.Value, xdlms.AccessResultTag) {
	if d.ClassID == 8 && d.Attribute == 2 {
		return axdr.Value{Tag: axdr.TagDateTime, Value: toAxdrDateTime(r.clock.Now())}, xdlms.AccessSuccess
	}
	v, ok := r.values[objectKey{d.ClassID, d.Instance, d.Attribute}]
	if !ok {
		return axdr.Value{}, xdlms.AccessObjectUndefined
	}
	return v, xdlms.AccessSuccess
}

func (r *registry) put(d xdlms.AttributeDescriptor, v axdr.Value) xdlms.AccessResultTag {
	key := objectKey{d.ClassID, d.Instance, d.Attribute}
	if _, ok := r.values[key]; !ok {
		return xdlms.AccessObjectUndefined
	}
	r.values[key] = v
	return xdlms.AccessSuccess
}

// invoke answers every Action the same way, whatever the method id: it
// zeroes attribute 2 of the addressed object when that attribute holds a
// double-long-unsigned value (in this registry, the class 3 register).
func (r *registry) invoke(m xdlms.MethodDescriptor) xdlms.AccessResultTag {
	key := objectKey{m.ClassID, m.Instance, 2}
	if cur, ok := r.values[key]; ok && cur.Tag == axdr.TagDoubleLongUnsigned {
		r.values[key] = axdr.Value{Tag: axdr.TagDoubleLongUnsigned, Value: uint64(0)}
		return xdlms.AccessSuccess
	}
	return xdlms.AccessObjectUndefined
}

func toAxdrDateTime(t time.Time) axdr.DateTime {
	return axdr.DateTime{
		Year: uint16(t.Year()), Month: byte(t.Month()), DayOfMonth: byte(t.Day()),
		DayOfWeek: byte(t.Weekday()),
		Hour:      byte(t.Hour()), Minute: byte(t.Minute()), Second: byte(t.Second()),
		Hundredths: byte(t.Nanosecond() / 10_000_000),
	}
}
