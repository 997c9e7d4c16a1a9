// Package script loads engine modules written in Lua.
//
// A script is opened like a shared library: the file runs once in a
// sandboxed gopher-lua state and must define a global CreateModule
// function. CreateModule returns a table whose optional fields
// initialize, shutdown, update, on_event and process_task are called as
// methods (the table is passed as the first argument):
//
//	function CreateModule()
//	    local m = { ticks = 0 }
//	    function m:update() self.ticks = self.ticks + 1 end
//	    function m:on_event(name) galaxy.log("event " .. name) end
//	    return m
//	end
//
// Raising a Lua error, or returning false (optionally followed by a
// message), fails the call.
package script
