// Command snapback ingests personal media exports into an organized,
// cataloged local library.
package main
