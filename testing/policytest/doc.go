// Package policytest provides a test harness for Kubewarden policies.
//
// A TestCase pairs an admission request fixture with settings and the
// expected verdict. Cases run against anything that can answer a validate
// payload: an in-process policy.Runtime or a compiled module loaded by the
// host package. FakeHost answers capability calls from canned responses and
// an in-memory cluster, and records what the policy logged.
package policytest
