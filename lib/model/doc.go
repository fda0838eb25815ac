// Package model contains the build model stored in the configuration cache:
// projects, tasks and the lazy properties, file collections and copy specs they
// are configured with.
//
// Instances that need construction services (a FileResolver) are created by an
// ObjectFactory. Build descriptions are read with ParseBuildFile:
//
//	factory := model.NewObjectFactory(model.NewFileResolver("."))
//	project, err := model.ParseBuildFile(f, factory)
//
// The graph codecs for the model live in the modelcodec sub package.
package model
