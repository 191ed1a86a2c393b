// Package shader holds the vocabulary shared by the translator and the
// linker: pipeline stages, GL type enumerants and the introspection
// records (variables, interface blocks, layouts) a translated shader
// reports about its interface.
//
// Records are plain values. The translator fills a Compiled per shader;
// the program linker consumes Compiled values and never mutates them.
package shader
