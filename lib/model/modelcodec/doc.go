// Package modelcodec contains the graph codecs of the build model. Tags 100 to
// 110 are frozen.
//
// Decoding requires the model.ObjectFactory construction service:
//
//	reg, _ := modelcodec.NewRegistry()
//	dec := graph.NewDecoder(reg, &graph.Options{Services: modelcodec.Services(factory)})
package modelcodec
