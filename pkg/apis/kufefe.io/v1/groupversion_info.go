// Package v1 contains API Schema definitions for the kufefe.io v1 API group
// +kubebuilder:object:generate=true
// +groupName=kufefe.io
package v1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// SchemeGroupVersion is group version used to register these objects
	SchemeGroupVersion = schema.GroupVersion{Group: "kufefe.io", Version: "v1"}

	// InternalSchemeBuilder is used to add go types to the GroupVersionKind scheme
	InternalSchemeBuilder = &scheme.Builder{GroupVersion: SchemeGroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = InternalSchemeBuilder.AddToScheme
)
